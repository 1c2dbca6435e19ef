package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryProvider serves pages from a local ordered slice. Filtering matches
// case-insensitively against the JSON serialization of each item.
type MemoryProvider struct {
	mu    sync.RWMutex
	items []interface{}
}

// NewMemoryProvider creates a provider over the given items. The slice is
// copied; later mutation of the argument does not affect the provider.
func NewMemoryProvider(items []interface{}) *MemoryProvider {
	copied := make([]interface{}, len(items))
	copy(copied, items)
	return &MemoryProvider{items: copied}
}

// SetItems replaces the provider's collection. Callers that swap the data
// under a live table engine should follow up with the engine's update
// trigger so stale pages get discarded.
func (p *MemoryProvider) SetItems(items []interface{}) {
	copied := make([]interface{}, len(items))
	copy(copied, items)

	p.mu.Lock()
	p.items = copied
	p.mu.Unlock()
}

// Len returns the current collection size.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// FetchItems returns [offset, offset+count) clipped to the collection.
func (p *MemoryProvider) FetchItems(ctx context.Context, offset, count int, withTotal bool) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	page := &Page{Offset: offset}
	if withTotal {
		total := len(p.items)
		page.TotalCount = &total
	}

	if offset < 0 || offset >= len(p.items) {
		page.Items = []interface{}{}
		return page, nil
	}

	end := offset + count
	if end > len(p.items) {
		end = len(p.items)
	}

	page.Items = make([]interface{}, end-offset)
	copy(page.Items, p.items[offset:end])
	return page, nil
}

// FetchFilteredItems returns up to count matches starting at offset among
// the matches, in original collection order.
func (p *MemoryProvider) FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	needle := strings.ToLower(filter)
	page := &Page{Offset: offset, Items: []interface{}{}}

	matched := 0
	for _, item := range p.items {
		if !strings.Contains(strings.ToLower(stringify(item)), needle) {
			continue
		}
		if matched >= offset {
			page.Items = append(page.Items, item)
			if len(page.Items) == count {
				break
			}
		}
		matched++
	}

	return page, nil
}

// stringify produces the text an item is matched against. JSON covers every
// field of a structured record; values that cannot marshal fall back to
// their fmt representation.
func stringify(item interface{}) string {
	if s, err := json.Marshal(item); err == nil {
		return string(s)
	}
	return fmt.Sprintf("%v", item)
}
