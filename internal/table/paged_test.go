package table

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/incidentops/console/internal/loading"
	"github.com/incidentops/console/internal/provider"
)

func TestPagedInitializeRendersFirstPage(t *testing.T) {
	r := &fakeRenderer{}
	p := newCountingProvider(intItems(0, 120)...)
	tbl := NewPagedTable(r, Config{PageSize: 50})

	tbl.Initialize(p)
	tbl.Wait()

	items := tbl.Items()
	if len(items) != 50 {
		t.Fatalf("expected 50 items, got %d", len(items))
	}
	if items[0] != 0 || items[49] != 49 {
		t.Errorf("unexpected page contents: first=%v last=%v", items[0], items[49])
	}
	if total, ok := tbl.TotalCount(); !ok || total != 120 {
		t.Errorf("expected total 120, got %d (known=%v)", total, ok)
	}
	if got := len(r.items()); got != 50 {
		t.Errorf("renderer shows %d rows, expected 50", got)
	}
	if call := p.lastCall(); !call.withTotal || call.offset != 0 || call.count != 50 {
		t.Errorf("unexpected initial fetch call: %+v", call)
	}
}

func TestPagedChangePageReplacesRows(t *testing.T) {
	r := &fakeRenderer{}
	p := newCountingProvider(intItems(0, 120)...)
	tbl := NewPagedTable(r, Config{PageSize: 50})

	tbl.Initialize(p)
	tbl.Wait()

	tbl.ChangePage(1)
	tbl.Wait()

	items := tbl.Items()
	if len(items) != 50 || items[0] != 50 {
		t.Fatalf("page 1 expected items 50..99, got len=%d first=%v", len(items), items[0])
	}
	if call := p.lastCall(); call.offset != 50 || call.count != 50 || call.withTotal {
		t.Errorf("unexpected fetch call: %+v", call)
	}

	tbl.ChangePage(2)
	tbl.Wait()
	if items := tbl.Items(); len(items) != 20 {
		t.Errorf("partial last page expected 20 items, got %d", len(items))
	}

	tbl.ChangePage(5)
	tbl.Wait()
	if items := tbl.Items(); len(items) != 0 {
		t.Errorf("out-of-range page expected no items, got %d", len(items))
	}
	if got := len(r.items()); got != 0 {
		t.Errorf("renderer still shows %d rows after empty page", got)
	}
}

func TestPagedStaleResponseDiscarded(t *testing.T) {
	r := &fakeRenderer{}
	gated := newGatedProvider(provider.NewMemoryProvider(intItems(0, 200)))
	tbl := NewPagedTable(r, Config{PageSize: 50})

	gated.releaseOffset(0)
	tbl.Initialize(gated)
	tbl.Wait()

	// Page 1 stays in flight while page 2 completes first.
	tbl.ChangePage(1)
	tbl.ChangePage(2)
	gated.releaseOffset(100)

	deadline := time.Now().Add(2 * time.Second)
	for {
		items := tbl.Items()
		if len(items) > 0 && items[0] == 100 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("page 2 response never applied")
		}
		time.Sleep(time.Millisecond)
	}

	gated.releaseOffset(50)
	tbl.Wait()

	items := tbl.Items()
	if len(items) != 50 || items[0] != 100 {
		t.Fatalf("stale page 1 response overwrote page 2: len=%d first=%v", len(items), items[0])
	}
	if tbl.CurrentPage() != 2 {
		t.Errorf("expected current page 2, got %d", tbl.CurrentPage())
	}
}

func TestPagedApplyFilterAccumulates(t *testing.T) {
	items := []interface{}{
		"alpha-1", "beta-1", "alpha-2", "alpha-3", "beta-2",
		"alpha-4", "alpha-5", "alpha-6", "alpha-7", "gamma-1",
	}
	r := &fakeRenderer{}
	p := newCountingProvider(items...)
	tbl := NewPagedTable(r, Config{PageSize: 3})

	tbl.Initialize(p)
	tbl.Wait()

	tbl.ApplyFilter("alpha")
	tbl.Wait()

	if !tbl.FilterApplied() {
		t.Fatal("filter should be applied")
	}
	got := tbl.Items()
	if len(got) != 3 || got[0] != "alpha-1" || got[2] != "alpha-3" {
		t.Fatalf("first filtered page wrong: %v", got)
	}
	if tbl.FilterExhausted() {
		t.Error("a full page of matches should not mark the filter exhausted")
	}

	tbl.FetchMore(1)
	tbl.Wait()
	if got := tbl.Items(); len(got) != 6 {
		t.Fatalf("expected 6 accumulated items, got %d", len(got))
	}
	if call := p.lastCall(); call.filter != "alpha" || call.offset != 3 || call.count != 3 {
		t.Errorf("unexpected fetch-more call: %+v", call)
	}

	// Seven matches total, so the final partial page ends the filter.
	tbl.FetchMore(1)
	tbl.Wait()
	if got := tbl.Items(); len(got) != 7 {
		t.Fatalf("expected 7 accumulated items, got %d", len(got))
	}
	if !tbl.FilterExhausted() {
		t.Error("partial page should mark the filter exhausted")
	}

	calls := p.callCount()
	tbl.FetchMore(1)
	tbl.Wait()
	if p.callCount() != calls {
		t.Error("fetch-more after exhaustion should not hit the provider")
	}
}

func TestPagedFetchMoreMultiplePages(t *testing.T) {
	r := &fakeRenderer{}
	p := newCountingProvider(
		"alpha-1", "alpha-2", "alpha-3", "alpha-4", "alpha-5",
		"alpha-6", "alpha-7", "alpha-8", "alpha-9",
	)
	tbl := NewPagedTable(r, Config{PageSize: 3})

	tbl.Initialize(p)
	tbl.Wait()
	tbl.ApplyFilter("alpha")
	tbl.Wait()

	tbl.FetchMore(2)
	tbl.Wait()

	if call := p.lastCall(); call.offset != 3 || call.count != 6 {
		t.Errorf("expected offset=3 count=6, got %+v", call)
	}
	if got := tbl.Items(); len(got) != 9 {
		t.Errorf("expected all 9 matches, got %d", len(got))
	}
}

func TestPagedFilterNoMatchesExhaustsImmediately(t *testing.T) {
	r := &fakeRenderer{}
	p := newCountingProvider("alpha-1", "alpha-2")
	tbl := NewPagedTable(r, Config{PageSize: 3})

	tbl.Initialize(p)
	tbl.Wait()
	tbl.ApplyFilter("zzz")
	tbl.Wait()

	if got := tbl.Items(); len(got) != 0 {
		t.Errorf("expected no items, got %v", got)
	}
	if !tbl.FilterExhausted() {
		t.Error("empty result should exhaust the filter")
	}
}

func TestPagedClearFilterRestoresPageZero(t *testing.T) {
	r := &fakeRenderer{}
	p := newCountingProvider("alpha-1", "beta-1", "alpha-2", "beta-2")
	tbl := NewPagedTable(r, Config{PageSize: 2})

	tbl.Initialize(p)
	tbl.Wait()
	tbl.ApplyFilter("alpha")
	tbl.Wait()

	tbl.ApplyFilter("")
	tbl.Wait()

	if tbl.FilterApplied() {
		t.Error("filter should be cleared")
	}
	got := tbl.Items()
	if len(got) != 2 || got[0] != "alpha-1" || got[1] != "beta-1" {
		t.Errorf("expected unfiltered page 0, got %v", got)
	}
	if tbl.CurrentPage() != 0 {
		t.Errorf("expected page 0, got %d", tbl.CurrentPage())
	}
}

func TestPagedChangePageIgnoredWhileFiltered(t *testing.T) {
	r := &fakeRenderer{}
	p := newCountingProvider("alpha-1", "beta-1", "alpha-2")
	tbl := NewPagedTable(r, Config{PageSize: 2})

	tbl.Initialize(p)
	tbl.Wait()
	tbl.ApplyFilter("alpha")
	tbl.Wait()

	calls := p.callCount()
	tbl.ChangePage(1)
	tbl.Wait()

	if p.callCount() != calls {
		t.Error("page change while filtered should not hit the provider")
	}
	if tbl.CurrentPage() != 0 {
		t.Errorf("page index should be unchanged, got %d", tbl.CurrentPage())
	}
}

func TestPagedFetchFailureKeepsRows(t *testing.T) {
	r := &fakeRenderer{}
	fail := false
	inner := provider.NewMemoryProvider(intItems(0, 10))
	p := provider.Funcs{
		Fetch: func(ctx context.Context, offset, count int, withTotal bool) (*provider.Page, error) {
			if fail {
				return nil, errors.New("backend unavailable")
			}
			return inner.FetchItems(ctx, offset, count, withTotal)
		},
		FetchFiltered: func(ctx context.Context, filter string, offset, count int) (*provider.Page, error) {
			return inner.FetchFilteredItems(ctx, filter, offset, count)
		},
	}
	tbl := NewPagedTable(r, Config{PageSize: 5})

	tbl.Initialize(p)
	tbl.Wait()

	fail = true
	tbl.ChangePage(1)
	tbl.Wait()

	if tbl.Loading() {
		t.Error("loading should end after a failed fetch")
	}
	if got := tbl.Items(); len(got) != 5 || got[0] != 0 {
		t.Errorf("failed fetch should keep previous rows, got %v", got)
	}
}

func TestPagedLoadingRegistry(t *testing.T) {
	reg := loading.NewRegistry()
	r := &fakeRenderer{}
	gated := newGatedProvider(provider.NewMemoryProvider(intItems(0, 10)))
	tbl := NewPagedTable(r, Config{PageSize: 5, Loading: reg, LoadingKey: "items"})

	tbl.Initialize(gated)

	deadline := time.Now().Add(2 * time.Second)
	for !reg.Visible() {
		if time.Now().After(deadline) {
			t.Fatal("loading indicator never became visible")
		}
		time.Sleep(time.Millisecond)
	}

	gated.releaseOffset(0)
	tbl.Wait()

	if reg.Visible() {
		t.Error("loading indicator should clear once the fetch settles")
	}
	if tbl.Loading() {
		t.Error("engine should not report loading after settle")
	}
}
