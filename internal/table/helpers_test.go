package table

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/incidentops/console/internal/provider"
)

// fakeRenderer keeps rows in display order so tests can assert exactly what
// a surface would show.
type fakeRenderer struct {
	mu       sync.Mutex
	rows     []*fakeRow
	rendered int
	removed  int
}

type fakeRow struct {
	item interface{}
}

func (r *fakeRenderer) RenderRow(item interface{}) RowHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := &fakeRow{item: item}
	r.rows = append(r.rows, row)
	r.rendered++
	return row
}

func (r *fakeRenderer) RemoveRow(handle RowHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := handle.(*fakeRow)
	for i, existing := range r.rows {
		if existing == row {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			r.removed++
			return
		}
	}
}

func (r *fakeRenderer) InsertBefore(handle, ref RowHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := handle.(*fakeRow)
	at := -1
	for i, existing := range r.rows {
		if existing == row {
			at = i
			break
		}
	}
	if at < 0 {
		return
	}
	r.rows = append(r.rows[:at], r.rows[at+1:]...)

	for i, existing := range r.rows {
		if existing == ref.(*fakeRow) {
			r.rows = append(r.rows[:i], append([]*fakeRow{row}, r.rows[i:]...)...)
			return
		}
	}
	r.rows = append(r.rows, row)
}

// items returns the displayed items, excluding sentinel rows.
func (r *fakeRenderer) items() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []interface{}
	for _, row := range r.rows {
		if _, ok := row.item.(sentinelItem); ok {
			continue
		}
		out = append(out, row.item)
	}
	return out
}

// rowFor finds the rendered row currently bound to item.
func (r *fakeRenderer) rowFor(item interface{}) *fakeRow {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if reflect.DeepEqual(row.item, item) {
			return row
		}
	}
	return nil
}

func (r *fakeRenderer) hasSentinel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if _, ok := row.item.(sentinelItem); ok {
			return true
		}
	}
	return false
}

// manualTimer collects scheduled callbacks and fires them only when the
// test says so.
type manualTimer struct {
	mu        sync.Mutex
	callbacks []*manualCallback
}

type manualCallback struct {
	fn        func()
	repeat    bool
	cancelled bool
}

func (t *manualTimer) Schedule(fn func(), delay time.Duration, repeat bool) TimerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	cb := &manualCallback{fn: fn, repeat: repeat}
	t.callbacks = append(t.callbacks, cb)
	return cb
}

func (t *manualTimer) Cancel(handle TimerHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	handle.(*manualCallback).cancelled = true
}

// fire runs every live callback once, as a timer period elapsing would.
func (t *manualTimer) fire() {
	t.mu.Lock()
	cbs := make([]*manualCallback, len(t.callbacks))
	copy(cbs, t.callbacks)
	t.mu.Unlock()

	for _, cb := range cbs {
		if !cb.cancelled {
			cb.fn()
		}
	}
}

// countingProvider wraps a MemoryProvider and records every fetch.
type countingProvider struct {
	inner *provider.MemoryProvider

	mu    sync.Mutex
	calls []fetchCall
}

type fetchCall struct {
	filter    string
	offset    int
	count     int
	withTotal bool
}

func newCountingProvider(items ...interface{}) *countingProvider {
	return &countingProvider{inner: provider.NewMemoryProvider(items)}
}

func (p *countingProvider) FetchItems(ctx context.Context, offset, count int, withTotal bool) (*provider.Page, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fetchCall{offset: offset, count: count, withTotal: withTotal})
	p.mu.Unlock()
	return p.inner.FetchItems(ctx, offset, count, withTotal)
}

func (p *countingProvider) FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*provider.Page, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fetchCall{filter: filter, offset: offset, count: count})
	p.mu.Unlock()
	return p.inner.FetchFilteredItems(ctx, filter, offset, count)
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *countingProvider) lastCall() fetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

// gatedProvider blocks each fetch on a per-offset gate until the test
// releases it, so a test can hold one response in flight while letting a
// later one through first.
type gatedProvider struct {
	inner provider.Provider

	mu    sync.Mutex
	gates map[int]chan struct{}
}

func newGatedProvider(inner provider.Provider) *gatedProvider {
	return &gatedProvider{inner: inner, gates: make(map[int]chan struct{})}
}

func (p *gatedProvider) gate(offset int) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.gates[offset]
	if !ok {
		g = make(chan struct{})
		p.gates[offset] = g
	}
	return g
}

func (p *gatedProvider) releaseOffset(offset int) {
	close(p.gate(offset))
}

func (p *gatedProvider) FetchItems(ctx context.Context, offset, count int, withTotal bool) (*provider.Page, error) {
	<-p.gate(offset)
	return p.inner.FetchItems(ctx, offset, count, withTotal)
}

func (p *gatedProvider) FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*provider.Page, error) {
	<-p.gate(offset)
	return p.inner.FetchFilteredItems(ctx, filter, offset, count)
}

// stepProvider blocks every fetch until the test releases it. Releases are
// handed out one at a time, so the test fully controls response order.
type stepProvider struct {
	inner *provider.MemoryProvider
	gate  chan struct{}

	mu    sync.Mutex
	calls []fetchCall
}

func newStepProvider(items ...interface{}) *stepProvider {
	return &stepProvider{inner: provider.NewMemoryProvider(items), gate: make(chan struct{})}
}

func (p *stepProvider) record(c fetchCall) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
}

func (p *stepProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// releaseOne unblocks exactly one waiting fetch, blocking until that fetch
// is actually waiting.
func (p *stepProvider) releaseOne() {
	p.gate <- struct{}{}
}

func (p *stepProvider) FetchItems(ctx context.Context, offset, count int, withTotal bool) (*provider.Page, error) {
	p.record(fetchCall{offset: offset, count: count, withTotal: withTotal})
	<-p.gate
	return p.inner.FetchItems(ctx, offset, count, withTotal)
}

func (p *stepProvider) FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*provider.Page, error) {
	p.record(fetchCall{filter: filter, offset: offset, count: count})
	<-p.gate
	return p.inner.FetchFilteredItems(ctx, filter, offset, count)
}

func intItems(from, to int) []interface{} {
	out := make([]interface{}, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
