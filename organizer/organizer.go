// Package organizer implements the page reordering surface: one
// thumbnail per source page, a working order that reordering and
// removal act on, and a commit step that copies the surviving pages
// into a fresh document.
package organizer

import (
	"fmt"
	"image"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/render"
)

// Item is one entry in the working order. ID is stable across
// reordering; SourceIndex is the page's position in the source
// document.
type Item struct {
	ID          int
	SourceIndex int
	Thumbnail   *image.RGBA
}

// Organizer holds the working order plus transient drag state.
type Organizer struct {
	doc   *document.Document
	items []Item

	dragItem     int // index being dragged, -1 when idle
	dragOverItem int // index currently hovered, -1 when idle
}

// New renders one fixed-scale thumbnail per page and starts with the
// source order.
func New(doc *document.Document) (*Organizer, error) {
	o := &Organizer{doc: doc, dragItem: -1, dragOverItem: -1}
	for i, page := range doc.Pages {
		thumb, err := render.Thumbnail(page)
		if err != nil {
			return nil, fmt.Errorf("organizer: page %d: %w", i, err)
		}
		o.items = append(o.items, Item{ID: i, SourceIndex: i, Thumbnail: thumb})
	}
	return o, nil
}

// Items returns the working order. The slice is a copy; the thumbnails
// are shared.
func (o *Organizer) Items() []Item {
	out := make([]Item, len(o.items))
	copy(out, o.items)
	return out
}

// Len returns the number of surviving pages.
func (o *Organizer) Len() int {
	return len(o.items)
}

// Reorder moves the item at from to position to within the working
// order. The source document is never touched.
func (o *Organizer) Reorder(from, to int) error {
	if from < 0 || from >= len(o.items) || to < 0 || to >= len(o.items) {
		return &doctool.InvalidParameterError{
			Name:   "position",
			Reason: fmt.Sprintf("move %d to %d with %d items", from, to, len(o.items)),
		}
	}
	if from == to {
		return nil
	}
	item := o.items[from]
	rest := append(o.items[:from:from], o.items[from+1:]...)
	o.items = append(rest[:to:to], append([]Item{item}, rest[to:]...)...)
	return nil
}

// Remove deletes the item with the given ID from the working order.
// Unknown IDs are ignored.
func (o *Organizer) Remove(id int) {
	for i, item := range o.items {
		if item.ID == id {
			o.items = append(o.items[:i], o.items[i+1:]...)
			return
		}
	}
}

// DragStart records the index a drag began on.
func (o *Organizer) DragStart(index int) {
	if index >= 0 && index < len(o.items) {
		o.dragItem = index
	}
}

// DragEnter records the index currently hovered.
func (o *Organizer) DragEnter(index int) {
	if index >= 0 && index < len(o.items) {
		o.dragOverItem = index
	}
}

// Drop applies the pending drag as a reorder and clears both drag
// references, whether or not a move happened.
func (o *Organizer) Drop() {
	if o.dragItem >= 0 && o.dragOverItem >= 0 {
		o.Reorder(o.dragItem, o.dragOverItem)
	}
	o.dragItem = -1
	o.dragOverItem = -1
}

// Dragging reports whether a drag is in progress.
func (o *Organizer) Dragging() bool {
	return o.dragItem >= 0
}

// Commit builds a new document containing the surviving pages in the
// working order. The source document is left unchanged.
func (o *Organizer) Commit() *document.Document {
	indices := make([]int, len(o.items))
	for i, item := range o.items {
		indices[i] = item.SourceIndex
	}
	out := document.CreateEmpty()
	out.AppendPages(o.doc.CopyPages(indices)...)
	return out
}
