// Package provider abstracts "give me items [offset, offset+count),
// optionally filtered" away from where the data lives. Table engines hold a
// Provider and never know whether it is backed by memory or by the console.
package provider

import "context"

// Page is one fetched window of a provider's logical collection.
type Page struct {
	// Items holds the fetched records in collection order. The engines
	// treat them as opaque.
	Items []interface{}

	// Offset is the offset that was requested, echoed back untouched.
	Offset int

	// TotalCount is the full collection size. Populated only when the
	// fetch asked for it, and never on filtered fetches.
	TotalCount *int
}

// Provider answers paged fetches over an ordered collection.
//
// Out-of-range offsets are not errors; they yield a page with no items.
// A returned error is terminal for that fetch: callers stop loading and
// keep whatever they already rendered, without retrying.
type Provider interface {
	// FetchItems returns the slice [offset, offset+count) of the
	// collection. When withTotal is set, Page.TotalCount carries the
	// collection size as currently known to the provider.
	FetchItems(ctx context.Context, offset, count int, withTotal bool) (*Page, error)

	// FetchFilteredItems returns up to count matching items starting at
	// offset among the matches. Matching is case-insensitive substring
	// matching against a provider-defined stringification of each item.
	FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*Page, error)
}

// Funcs adapts a pair of functions into a Provider.
type Funcs struct {
	Fetch         func(ctx context.Context, offset, count int, withTotal bool) (*Page, error)
	FetchFiltered func(ctx context.Context, filter string, offset, count int) (*Page, error)
}

func (f Funcs) FetchItems(ctx context.Context, offset, count int, withTotal bool) (*Page, error) {
	return f.Fetch(ctx, offset, count, withTotal)
}

func (f Funcs) FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*Page, error) {
	return f.FetchFiltered(ctx, filter, offset, count)
}
