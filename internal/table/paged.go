package table

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/incidentops/console/internal/constants"
	"github.com/incidentops/console/internal/loading"
	"github.com/incidentops/console/internal/logging"
	"github.com/incidentops/console/internal/provider"
)

// Config holds the settings shared by both table engines. Zero values fall
// back to the defaults in internal/constants.
type Config struct {
	// PageSize is the number of items requested per fetch.
	PageSize int

	// FetchTimeout bounds a single provider fetch. A timed-out fetch is an
	// ordinary failed fetch: loading stops, rendered rows are kept.
	FetchTimeout time.Duration

	// Logger receives fetch failures and supersession debug output.
	Logger *logging.Logger

	// Loading, when set, tracks in-flight fetches under LoadingKey so a
	// surface can drive a shared loading indicator.
	Loading *loading.Registry

	// LoadingKey defaults to "table".
	LoadingKey string
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = constants.DefaultPageSize
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = constants.DefaultFetchTimeout
	}
	if c.LoadingKey == "" {
		c.LoadingKey = "table"
	}
	return c
}

func (c Config) zerolog() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return c.Logger.Zerolog()
}

// PagedTable renders one page of items at a time with explicit page
// navigation. Applying a filter switches it to cumulative fetch-more mode:
// filtered results accumulate and page navigation is disabled until the
// filter is cleared.
//
// Every fetch carries a generation number taken when it is triggered; a
// response whose generation no longer matches at arrival is discarded, so
// a fast sequence of user actions never lets a slow stale response
// overwrite newer state.
type PagedTable struct {
	renderer Renderer
	cfg      Config
	log      zerolog.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	prov     provider.Provider
	gen      uint64
	page     int
	filter   string
	done     bool // filter exhausted
	fetching bool
	items    []interface{}
	rows     []RowHandle
	total    *int
}

// NewPagedTable creates an engine rendering through r.
func NewPagedTable(r Renderer, cfg Config) *PagedTable {
	cfg = cfg.withDefaults()
	return &PagedTable{
		renderer: r,
		cfg:      cfg,
		log:      cfg.zerolog(),
	}
}

// Initialize binds the provider and fetches page 0 with the total count.
// Calling it again (a provider swap) supersedes any in-flight fetch.
func (t *PagedTable) Initialize(p provider.Provider) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prov = p
	t.page = 0
	t.filter = ""
	t.done = false
	t.startFetchLocked(fetchSpec{offset: 0, count: t.cfg.PageSize, withTotal: true})
}

// ChangePage navigates to pageIndex. A no-op while a filter is applied;
// filtered mode accumulates with FetchMore instead of discrete pages.
func (t *PagedTable) ChangePage(pageIndex int) {
	if pageIndex < 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prov == nil || t.filter != "" {
		return
	}

	t.page = pageIndex
	t.startFetchLocked(fetchSpec{offset: pageIndex * t.cfg.PageSize, count: t.cfg.PageSize})
}

// ApplyFilter enters or leaves filtered mode. An empty text clears the
// filter and refetches page 0 unfiltered. A non-empty text clears the
// accumulated rows and fetches the first page of matches.
func (t *PagedTable) ApplyFilter(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prov == nil {
		return
	}

	t.done = false
	if text == "" {
		t.filter = ""
		t.page = 0
		t.startFetchLocked(fetchSpec{offset: 0, count: t.cfg.PageSize})
		return
	}

	t.filter = text
	t.clearRowsLocked()
	t.startFetchLocked(fetchSpec{filter: text, offset: 0, count: t.cfg.PageSize, appendRows: true})
}

// FetchMore requests pages*PageSize additional filtered items past the
// accumulated set. Valid only in filtered mode.
func (t *PagedTable) FetchMore(pages int) {
	if pages < 1 {
		pages = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prov == nil || t.filter == "" || t.done {
		return
	}

	t.startFetchLocked(fetchSpec{
		filter:     t.filter,
		offset:     len(t.items),
		count:      t.cfg.PageSize * pages,
		appendRows: true,
	})
}

type fetchSpec struct {
	filter     string
	offset     int
	count      int
	withTotal  bool
	appendRows bool
}

// startFetchLocked takes a new generation and dispatches the fetch. The
// response is applied only if the generation still matches on arrival.
func (t *PagedTable) startFetchLocked(spec fetchSpec) {
	t.gen++
	gen := t.gen
	t.fetching = true
	prov := t.prov

	if t.cfg.Loading != nil {
		t.cfg.Loading.Start(t.cfg.LoadingKey)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.FetchTimeout)
		defer cancel()

		var page *provider.Page
		var err error
		if spec.filter != "" {
			page, err = prov.FetchFilteredItems(ctx, spec.filter, spec.offset, spec.count)
		} else {
			page, err = prov.FetchItems(ctx, spec.offset, spec.count, spec.withTotal)
		}

		t.mu.Lock()
		defer t.mu.Unlock()

		if t.cfg.Loading != nil {
			t.cfg.Loading.Finish(t.cfg.LoadingKey)
		}

		if gen != t.gen {
			t.log.Debug().Uint64("gen", gen).Msg("discarding superseded fetch response")
			return
		}

		t.fetching = false
		if err != nil {
			t.log.Error().Err(err).Int("offset", spec.offset).Msg("fetch failed")
			return
		}

		t.applyLocked(spec, page)
	}()
}

func (t *PagedTable) applyLocked(spec fetchSpec, page *provider.Page) {
	if page.TotalCount != nil {
		t.total = page.TotalCount
	}

	if spec.appendRows {
		for _, item := range page.Items {
			t.items = append(t.items, item)
			t.rows = append(t.rows, t.renderer.RenderRow(item))
		}
		if spec.filter != "" && (len(page.Items) == 0 || len(page.Items)%t.cfg.PageSize != 0) {
			t.done = true
		}
		return
	}

	t.clearRowsLocked()
	t.items = make([]interface{}, len(page.Items))
	copy(t.items, page.Items)
	for _, item := range page.Items {
		t.rows = append(t.rows, t.renderer.RenderRow(item))
	}
}

func (t *PagedTable) clearRowsLocked() {
	for _, h := range t.rows {
		t.renderer.RemoveRow(h)
	}
	t.rows = nil
	t.items = nil
}

// Items returns the currently applied item set.
func (t *PagedTable) Items() []interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]interface{}, len(t.items))
	copy(out, t.items)
	return out
}

// CurrentPage returns the current page index (unfiltered mode).
func (t *PagedTable) CurrentPage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// TotalCount returns the last reported collection size, if known.
func (t *PagedTable) TotalCount() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total == nil {
		return 0, false
	}
	return *t.total, true
}

// FilterApplied reports whether the engine is in filtered mode.
func (t *PagedTable) FilterApplied() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter != ""
}

// FilterExhausted reports whether the last filtered fetch signalled that no
// more matches remain.
func (t *PagedTable) FilterExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Loading reports whether a fetch is outstanding.
func (t *PagedTable) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetching
}

// Wait blocks until no fetch goroutine is running. Intended for tests and
// for command-line callers that want a settled view before printing.
func (t *PagedTable) Wait() {
	t.wg.Wait()
}
