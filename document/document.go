// Package document holds the semantic page model the tools operate on.
// A Document is a mutable in-memory structure produced by the parser or
// built from scratch; the writer serializes it back to bytes.
package document

import (
	"github.com/wudi/doctool/contentstream"
	"github.com/wudi/doctool/ir/raw"
	"github.com/wudi/doctool/security"
)

// Rectangle is a PDF rectangle in default user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the rectangle's horizontal extent.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the rectangle's vertical extent.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// A4 is the default media box for new pages.
var A4 = Rectangle{0, 0, 595.28, 841.89}

// Letter is the US Letter media box.
var Letter = Rectangle{0, 0, 612, 792}

// Image is an embedded raster image (an image XObject). Data holds
// either raw samples or a complete JPEG file, per Filter.
type Image struct {
	Width            int
	Height           int
	ColorSpace       string // DeviceRGB or DeviceGray
	BitsPerComponent int
	Filter           string // DCTDecode for JPEG, empty for raw samples
	Data             []byte
	SMask            *Image // soft mask, DeviceGray
}

// Resources names the objects a page's content stream refers to.
type Resources struct {
	Images     map[string]*Image
	Fonts      map[string]string  // resource name -> base font name
	ExtGStates map[string]float64 // resource name -> fill alpha
}

func newResources() *Resources {
	return &Resources{
		Images:     make(map[string]*Image),
		Fonts:      make(map[string]string),
		ExtGStates: make(map[string]float64),
	}
}

func (r *Resources) clone() *Resources {
	c := newResources()
	for k, v := range r.Images {
		c.Images[k] = v
	}
	for k, v := range r.Fonts {
		c.Fonts[k] = v
	}
	for k, v := range r.ExtGStates {
		c.ExtGStates[k] = v
	}
	return c
}

// Page is one page: geometry, resources and parsed content operations.
type Page struct {
	MediaBox  Rectangle
	Rotate    int // 0, 90, 180 or 270
	Resources *Resources
	Ops       []contentstream.Operation

	nextImage int
	nextGS    int
	nextFont  int
}

// NewPage returns an empty page with the given media box.
func NewPage(box Rectangle) *Page {
	return &Page{MediaBox: box, Resources: newResources()}
}

// Clone deep-copies the page. Image data is shared; images are treated
// as immutable throughout the toolkit.
func (p *Page) Clone() *Page {
	c := &Page{
		MediaBox:  p.MediaBox,
		Rotate:    p.Rotate,
		Resources: p.Resources.clone(),
		Ops:       make([]contentstream.Operation, len(p.Ops)),
		nextImage: p.nextImage,
		nextGS:    p.nextGS,
		nextFont:  p.nextFont,
	}
	copy(c.Ops, p.Ops)
	return c
}

// TextRuns returns the text shown by the page's Tj operators, in
// content order.
func (p *Page) TextRuns() []string {
	var out []string
	for _, op := range p.Ops {
		if op.Operator != "Tj" || len(op.Operands) != 1 {
			continue
		}
		if s, ok := op.Operands[0].(raw.String); ok {
			out = append(out, string(s.Bytes))
		}
	}
	return out
}

// Document is an ordered collection of pages plus output encryption
// settings.
type Document struct {
	Pages []*Page

	// WasEncrypted records that the source file carried an encryption
	// dictionary. Serialization does not re-encrypt unless
	// SetEncryption is called.
	WasEncrypted bool

	// SourcePermissions holds the access flags read from an encrypted
	// source.
	SourcePermissions security.Permissions

	encrypt       bool
	userPassword  string
	ownerPassword string
	permissions   security.Permissions
}

// CreateEmpty returns a document with no pages.
func CreateEmpty() *Document {
	return &Document{}
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// AppendPages adds pages to the end of the document.
func (d *Document) AppendPages(pages ...*Page) {
	d.Pages = append(d.Pages, pages...)
}

// AddPage appends a fresh page and returns it.
func (d *Document) AddPage(box Rectangle) *Page {
	p := NewPage(box)
	d.Pages = append(d.Pages, p)
	return p
}

// CopyPages clones the pages at the given zero-based indices, in the
// given order, duplicates included. Indices outside the document are
// skipped.
func (d *Document) CopyPages(indices []int) []*Page {
	var out []*Page
	for _, i := range indices {
		if i < 0 || i >= len(d.Pages) {
			continue
		}
		out = append(out, d.Pages[i].Clone())
	}
	return out
}

// SetEncryption arms output encryption with the Standard handler. The
// owner password defaults to the user password when empty.
func (d *Document) SetEncryption(userPassword, ownerPassword string, perms security.Permissions) {
	if ownerPassword == "" {
		ownerPassword = userPassword
	}
	d.encrypt = true
	d.userPassword = userPassword
	d.ownerPassword = ownerPassword
	d.permissions = perms
}

// ClearEncryption disables output encryption, producing a plain file.
func (d *Document) ClearEncryption() {
	d.encrypt = false
	d.userPassword = ""
	d.ownerPassword = ""
}

// Encryption reports the armed output encryption settings.
func (d *Document) Encryption() (user, owner string, perms security.Permissions, on bool) {
	return d.userPassword, d.ownerPassword, d.permissions, d.encrypt
}
