// Package table implements the paged and incremental list engines that sit
// between an items provider and a row renderer.
package table

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// RowHandle identifies a rendered row. Opaque to the engines.
type RowHandle interface{}

// Renderer materializes visual rows for the engines. Implementations are
// synchronous from the engine's point of view and must not call back into
// the engine.
//
// Rows are bound once at render time: an engine never mutates a rendered
// row in place. The only path that replaces a row's content is the
// incremental engine's refresh merge, which renders a fresh row and removes
// the old one.
type Renderer interface {
	// RenderRow materializes a row bound to item at the end of the list.
	RenderRow(item interface{}) RowHandle

	// RemoveRow detaches a rendered row.
	RemoveRow(handle RowHandle)

	// InsertBefore moves handle so it precedes ref.
	InsertBefore(handle, ref RowHandle)
}

// TextRenderer is a Renderer that keeps rows as text lines, for terminal
// output. Items that are plain strings render as-is; everything else is
// JSON-encoded.
type TextRenderer struct {
	mu   sync.Mutex
	next int
	rows []textRow
}

type textRow struct {
	id   int
	line string
}

// NewTextRenderer creates an empty text renderer.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) RenderRow(item interface{}) RowHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.rows = append(r.rows, textRow{id: r.next, line: formatItem(item)})
	return r.next
}

func (r *TextRenderer) RemoveRow(handle RowHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := handle.(int)
	for i, row := range r.rows {
		if row.id == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return
		}
	}
}

func (r *TextRenderer) InsertBefore(handle, ref RowHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := handle.(int)
	refID, _ := ref.(int)

	var moved *textRow
	for i, row := range r.rows {
		if row.id == id {
			m := row
			moved = &m
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			break
		}
	}
	if moved == nil {
		return
	}

	for i, row := range r.rows {
		if row.id == refID {
			r.rows = append(r.rows[:i], append([]textRow{*moved}, r.rows[i:]...)...)
			return
		}
	}
	r.rows = append(r.rows, *moved)
}

// Lines returns the rendered lines in display order.
func (r *TextRenderer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.rows))
	for i, row := range r.rows {
		lines[i] = row.line
	}
	return lines
}

// WriteTo writes the rendered lines to w, one per row.
func (r *TextRenderer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range r.Lines() {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func formatItem(item interface{}) string {
	if s, ok := item.(string); ok {
		return s
	}
	if s, ok := item.(fmt.Stringer); ok {
		return s.String()
	}
	if data, err := json.Marshal(item); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", item)
}
