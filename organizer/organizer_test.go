package organizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/doctool/document"
)

func sourceDoc(n int) *document.Document {
	doc := document.CreateEmpty()
	for i := 0; i < n; i++ {
		p := doc.AddPage(document.Rectangle{URX: 100, URY: 100})
		p.Rotate = (i * 90) % 360
	}
	return doc
}

func order(o *Organizer) []int {
	var ids []int
	for _, item := range o.Items() {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestNewRendersThumbnails(t *testing.T) {
	o, err := New(sourceDoc(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.Len() != 3 {
		t.Fatalf("got %d items", o.Len())
	}
	for _, item := range o.Items() {
		if item.Thumbnail == nil {
			t.Fatalf("item %d has no thumbnail", item.ID)
		}
		// Thumbnails render at half scale.
		if item.Thumbnail.Bounds().Dx() != 50 {
			t.Fatalf("thumbnail width: %d", item.Thumbnail.Bounds().Dx())
		}
	}
}

func TestReorder(t *testing.T) {
	o, err := New(sourceDoc(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Reorder(3, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if diff := cmp.Diff([]int{3, 0, 1, 2}, order(o)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if err := o.Reorder(0, 2); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 3, 2}, order(o)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if err := o.Reorder(0, 9); err == nil {
		t.Fatal("out-of-range reorder must error")
	}
}

func TestRemoveActsOnWorkingOrderOnly(t *testing.T) {
	doc := sourceDoc(3)
	o, err := New(doc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.Remove(1)
	if diff := cmp.Diff([]int{0, 2}, order(o)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if doc.PageCount() != 3 {
		t.Fatal("remove must not touch the source document")
	}
	o.Remove(42) // unknown id ignored
	if o.Len() != 2 {
		t.Fatalf("got %d items", o.Len())
	}
}

func TestDragLifecycle(t *testing.T) {
	o, err := New(sourceDoc(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.DragStart(0)
	if !o.Dragging() {
		t.Fatal("drag not started")
	}
	o.DragEnter(2)
	o.Drop()
	if diff := cmp.Diff([]int{1, 2, 0}, order(o)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if o.Dragging() {
		t.Fatal("drag refs not cleared on drop")
	}

	// A drop without a hover target is a no-op but still clears state.
	o.DragStart(1)
	o.Drop()
	if diff := cmp.Diff([]int{1, 2, 0}, order(o)); diff != "" {
		t.Fatalf("order changed by empty drop (-want +got):\n%s", diff)
	}
	if o.Dragging() {
		t.Fatal("drag refs not cleared")
	}
}

func TestCommit(t *testing.T) {
	doc := sourceDoc(3)
	o, err := New(doc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.Remove(0)
	if err := o.Reorder(1, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	out := o.Commit()
	if out.PageCount() != 2 {
		t.Fatalf("got %d pages", out.PageCount())
	}
	// Working order was [2, 1]; rotations identify source pages.
	if out.Pages[0].Rotate != 180 || out.Pages[1].Rotate != 90 {
		t.Fatalf("rotations: %d, %d", out.Pages[0].Rotate, out.Pages[1].Rotate)
	}
	if doc.PageCount() != 3 {
		t.Fatal("commit must not mutate the source")
	}
}
