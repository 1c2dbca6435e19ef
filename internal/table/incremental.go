package table

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/incidentops/console/internal/constants"
	"github.com/incidentops/console/internal/provider"
)

// IncrementalConfig extends Config with the scroll and refresh behaviour of
// the incremental engine.
type IncrementalConfig struct {
	Config

	// TickInterval is how often the engine checks whether the sentinel row
	// is visible and more items should be pulled in.
	TickInterval time.Duration

	// SentinelVisible reports whether the load-more sentinel row is
	// currently in view. Nil means always visible, which turns the engine
	// into a background prefetcher that keeps pulling pages until the
	// collection is exhausted.
	SentinelVisible func() bool

	// AutoRefresh re-fetches the first page periodically and reconciles it
	// into the rendered rows. Only runs while unfiltered and while the
	// table still fits in a single page.
	AutoRefresh         bool
	AutoRefreshInterval time.Duration

	// KeyFunc derives the identity of an item, used to match rows across
	// refreshes. Defaults to the item's JSON encoding.
	KeyFunc func(item interface{}) string

	// HashFunc derives the content fingerprint of an item. A row whose key
	// matches but whose hash changed is re-rendered in place. Defaults to
	// the item's JSON encoding.
	HashFunc func(item interface{}) string
}

func (c IncrementalConfig) withDefaults() IncrementalConfig {
	c.Config = c.Config.withDefaults()
	if c.TickInterval <= 0 {
		c.TickInterval = constants.ScrollCheckInterval
	}
	if c.AutoRefreshInterval <= 0 {
		c.AutoRefreshInterval = constants.AutoRefreshInterval
	}
	if c.KeyFunc == nil {
		c.KeyFunc = jsonFingerprint
	}
	if c.HashFunc == nil {
		c.HashFunc = jsonFingerprint
	}
	return c
}

func jsonFingerprint(item interface{}) string {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("%#v", item)
	}
	return string(b)
}

type renderedRow struct {
	handle RowHandle
	item   interface{}
	key    string
	hash   string
}

// IncrementalTable appends pages on demand as a sentinel row scrolls into
// view, instead of swapping whole pages. A filter change or an explicit
// TriggerUpdate resets it to an empty table that refills on the next tick.
//
// Same supersession rule as PagedTable: a reset bumps the generation and
// any response from before the reset is dropped on arrival.
type IncrementalTable struct {
	renderer Renderer
	timer    Timer
	cfg      IncrementalConfig
	log      zerolog.Logger

	mu         sync.Mutex
	wg         sync.WaitGroup
	prov       provider.Provider
	gen        uint64
	fetchGen   uint64
	refreshGen uint64
	page       int
	filter     string
	done       bool
	fetching   bool
	refreshing bool
	stopped    bool
	rows       []renderedRow
	sentinel   RowHandle
	total      *int

	tickHandle    TimerHandle
	refreshHandle TimerHandle
}

// NewIncrementalTable creates an engine rendering through r and scheduling
// through timer.
func NewIncrementalTable(r Renderer, timer Timer, cfg IncrementalConfig) *IncrementalTable {
	cfg = cfg.withDefaults()
	return &IncrementalTable{
		renderer: r,
		timer:    timer,
		cfg:      cfg,
		log:      cfg.zerolog(),
	}
}

// Bind attaches the provider, renders the sentinel row and starts the tick
// timer (plus the refresh timer when auto-refresh is on). The first page is
// fetched immediately with the total count.
func (t *IncrementalTable) Bind(p provider.Provider) {
	t.mu.Lock()
	defer t.mu.Unlock()

	first := t.prov == nil
	t.prov = p
	if t.sentinel == nil {
		t.sentinel = t.renderer.RenderRow(sentinelItem{})
	}
	if first {
		t.tickHandle = t.timer.Schedule(t.tick, t.cfg.TickInterval, true)
		if t.cfg.AutoRefresh {
			t.refreshHandle = t.timer.Schedule(t.refreshTick, t.cfg.AutoRefreshInterval, true)
		}
	}
	t.fetchNextPageLocked(true)
}

// sentinelItem is what the load-more row renders as.
type sentinelItem struct{}

func (sentinelItem) String() string { return "..." }

func (t *IncrementalTable) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prov == nil || t.stopped || t.fetching || t.refreshing || t.done {
		return
	}
	if t.cfg.SentinelVisible != nil && !t.cfg.SentinelVisible() {
		return
	}
	t.fetchNextPageLocked(false)
}

func (t *IncrementalTable) fetchNextPageLocked(withTotal bool) {
	t.gen++
	gen := t.gen
	t.fetchGen = gen
	t.fetching = true
	prov := t.prov
	filter := t.filter
	offset := t.page * t.cfg.PageSize

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
		if filter != "" {
			page, err = prov.FetchFilteredItems(ctx, filter, offset, t.cfg.PageSize)
		} else {
			page, err = prov.FetchItems(ctx, offset, t.cfg.PageSize, withTotal)
		}

		t.mu.Lock()
		defer t.mu.Unlock()

		if t.cfg.Loading != nil {
			t.cfg.Loading.Finish(t.cfg.LoadingKey)
		}

		// The flag belongs to this dispatch unless a newer page fetch took
		// it over, so a superseded response must still release it.
		if t.fetchGen == gen {
			t.fetching = false
		}
		if gen != t.gen || t.stopped {
			t.log.Debug().Uint64("gen", gen).Msg("discarding superseded page response")
			return
		}

		if err != nil {
			t.log.Error().Err(err).Int("offset", offset).Msg("page fetch failed")
			return
		}

		t.appendPageLocked(page)
	}()
}

func (t *IncrementalTable) appendPageLocked(page *provider.Page) {
	if page.TotalCount != nil {
		t.total = page.TotalCount
	}

	for _, item := range page.Items {
		h := t.renderer.RenderRow(item)
		if t.sentinel != nil {
			t.renderer.InsertBefore(h, t.sentinel)
		}
		t.rows = append(t.rows, renderedRow{
			handle: h,
			item:   item,
			key:    t.cfg.KeyFunc(item),
			hash:   t.cfg.HashFunc(item),
		})
	}
	t.page++

	if len(page.Items) < t.cfg.PageSize {
		t.done = true
		if t.sentinel != nil {
			t.renderer.RemoveRow(t.sentinel)
			t.sentinel = nil
		}
	}
}

// SetFilter replaces the active filter text. Any change, including clearing
// back to empty, resets the table; the next tick refills it.
func (t *IncrementalTable) SetFilter(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text == t.filter {
		return
	}
	t.filter = text
	t.resetLocked()
}

// TriggerUpdate discards all rendered rows and refills from scratch on the
// next tick, keeping the current filter.
func (t *IncrementalTable) TriggerUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *IncrementalTable) resetLocked() {
	t.gen++
	t.fetching = false
	t.refreshing = false
	t.page = 0
	t.done = false
	for _, r := range t.rows {
		t.renderer.RemoveRow(r.handle)
	}
	t.rows = nil
	if t.sentinel != nil {
		t.renderer.RemoveRow(t.sentinel)
	}
	t.sentinel = t.renderer.RenderRow(sentinelItem{})
}

func (t *IncrementalTable) refreshTick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.prov == nil || t.stopped || t.fetching || t.refreshing {
		return
	}
	// Refresh only covers the single-page case: once the user has scrolled
	// past the first page a refetch of page 0 could not be reconciled
	// without disturbing their position.
	if t.filter != "" || len(t.rows) >= t.cfg.PageSize {
		return
	}

	t.gen++
	gen := t.gen
	t.refreshGen = gen
	t.refreshing = true
	prov := t.prov

	if t.cfg.Loading != nil {
		t.cfg.Loading.Start(t.cfg.LoadingKey)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.FetchTimeout)
		defer cancel()

		page, err := prov.FetchItems(ctx, 0, t.cfg.PageSize, true)

		t.mu.Lock()
		defer t.mu.Unlock()

		if t.cfg.Loading != nil {
			t.cfg.Loading.Finish(t.cfg.LoadingKey)
		}

		if t.refreshGen == gen {
			t.refreshing = false
		}
		if gen != t.gen || t.stopped {
			return
		}

		if err != nil {
			t.log.Debug().Err(err).Msg("auto-refresh fetch failed")
			return
		}

		t.mergeRefreshLocked(page)
	}()
}

// mergeRefreshLocked reconciles a fresh first page into the rendered rows.
// Rows whose content is unchanged are left untouched, changed rows are
// re-rendered in place, and unseen items are inserted at the top in the
// order the server returned them.
func (t *IncrementalTable) mergeRefreshLocked(page *provider.Page) {
	if page.TotalCount != nil {
		t.total = page.TotalCount
	}

	existing := make(map[string]*renderedRow, len(t.rows))
	for i := range t.rows {
		existing[t.rows[i].key] = &t.rows[i]
	}

	var inserted []renderedRow
	for _, item := range page.Items {
		key := t.cfg.KeyFunc(item)
		hash := t.cfg.HashFunc(item)

		if row, ok := existing[key]; ok {
			if row.hash == hash {
				continue
			}
			h := t.renderer.RenderRow(item)
			t.renderer.InsertBefore(h, row.handle)
			t.renderer.RemoveRow(row.handle)
			row.handle = h
			row.item = item
			row.hash = hash
			continue
		}

		h := t.renderer.RenderRow(item)
		if anchor := t.topAnchorLocked(); anchor != nil {
			t.renderer.InsertBefore(h, anchor)
		}
		inserted = append(inserted, renderedRow{handle: h, item: item, key: key, hash: hash})
	}

	if len(inserted) > 0 {
		t.rows = append(inserted, t.rows...)
	}
}

func (t *IncrementalTable) topAnchorLocked() RowHandle {
	if len(t.rows) > 0 {
		return t.rows[0].handle
	}
	return t.sentinel
}

// Items returns the rendered items in display order.
func (t *IncrementalTable) Items() []interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]interface{}, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.item
	}
	return out
}

// TotalCount returns the last reported collection size, if known.
func (t *IncrementalTable) TotalCount() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total == nil {
		return 0, false
	}
	return *t.total, true
}

// Exhausted reports whether the collection has been fully loaded for the
// current filter.
func (t *IncrementalTable) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Loading reports whether a page fetch or refresh is outstanding.
func (t *IncrementalTable) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetching || t.refreshing
}

// Stop cancels the timers and drops responses from any in-flight fetch.
func (t *IncrementalTable) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	t.gen++
	if t.tickHandle != nil {
		t.timer.Cancel(t.tickHandle)
		t.tickHandle = nil
	}
	if t.refreshHandle != nil {
		t.timer.Cancel(t.refreshHandle)
		t.refreshHandle = nil
	}
}

// Wait blocks until no fetch goroutine is running.
func (t *IncrementalTable) Wait() {
	t.wg.Wait()
}
