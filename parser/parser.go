package parser

import (
	"bytes"
	"fmt"

	"github.com/wudi/doctool/contentstream"
	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/filters"
	"github.com/wudi/doctool/ir/raw"
	"github.com/wudi/doctool/security"
	"github.com/wudi/doctool/xref"
)

const maxPageTreeDepth = 64

// Load parses data into the document model. password may be empty.
// Failures are reported as *doctool.LoadError with a structured kind.
func Load(data []byte, password string) (*document.Document, error) {
	if !bytes.Contains(head(data, 1024), []byte("%PDF-")) {
		return nil, malformed(fmt.Errorf("missing %%PDF header"))
	}
	table, err := xref.Parse(data)
	if err != nil {
		table, err = xref.Repair(data)
		if err != nil {
			return nil, malformed(err)
		}
	}
	l := newObjectLoader(data, table)
	trailer, err := l.loadTrailer()
	if err != nil {
		// The table may be stale; retry once against a repaired table.
		if table, rerr := xref.Repair(data); rerr == nil {
			l = newObjectLoader(data, table)
			trailer, err = l.loadTrailer()
		}
		if err != nil {
			return nil, malformed(err)
		}
	}

	doc := document.CreateEmpty()
	if encObj := trailer.Get("Encrypt"); encObj != nil {
		encDict, err := l.resolveDict(encObj)
		if err != nil {
			return nil, malformed(err)
		}
		if encDict == nil {
			return nil, malformed(fmt.Errorf("/Encrypt is not a dictionary"))
		}
		handler, err := security.NewHandler(encDict, trailer, password)
		if err != nil {
			return nil, passwordError(password, err)
		}
		l.handler = handler
		doc.WasEncrypted = true
		doc.SourcePermissions = handler.Permissions()
	}

	rootObj := trailer.Get("Root")
	if rootObj == nil {
		return nil, malformed(fmt.Errorf("trailer has no /Root"))
	}
	catalog, err := l.resolveDict(rootObj)
	if err != nil {
		return nil, malformed(err)
	}
	if catalog == nil {
		return nil, malformed(fmt.Errorf("catalog is not a dictionary"))
	}
	pagesObj := catalog.Get("Pages")
	if pagesObj == nil {
		return nil, malformed(fmt.Errorf("catalog has no /Pages"))
	}
	pagesDict, err := l.resolveDict(pagesObj)
	if err != nil {
		return nil, malformed(err)
	}
	if pagesDict == nil {
		return nil, malformed(fmt.Errorf("page tree root is not a dictionary"))
	}

	inh := inherited{mediaBox: document.Letter}
	if err := l.walkPageTree(pagesDict, inh, 0, doc); err != nil {
		return nil, malformed(err)
	}
	return doc, nil
}

func head(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}

// inherited carries attributes page tree nodes pass to their children.
type inherited struct {
	mediaBox  document.Rectangle
	rotate    int
	resources *raw.Dict
}

func (l *objectLoader) walkPageTree(node *raw.Dict, inh inherited, depth int, doc *document.Document) error {
	if depth > maxPageTreeDepth {
		return fmt.Errorf("page tree deeper than %d", maxPageTreeDepth)
	}
	if box, ok := l.rectangle(node.Get("MediaBox")); ok {
		inh.mediaBox = box
	}
	if rot, ok := node.GetInt("Rotate"); ok {
		r := int(rot) % 360
		if r < 0 {
			r += 360
		}
		inh.rotate = r
	}
	if resObj := node.Get("Resources"); resObj != nil {
		if res, err := l.resolveDict(resObj); err == nil {
			inh.resources = res
		}
	}

	nodeType, _ := node.GetName("Type")
	if nodeType == "Page" {
		page, err := l.buildPage(node, inh)
		if err != nil {
			return err
		}
		doc.AppendPages(page)
		return nil
	}

	kidsObj, err := l.resolve(node.Get("Kids"))
	if err != nil {
		return err
	}
	kids, ok := kidsObj.(*raw.Array)
	if !ok {
		return fmt.Errorf("pages node has no /Kids array")
	}
	for _, kid := range kids.Items {
		kidDict, err := l.resolveDict(kid)
		if err != nil {
			return err
		}
		if kidDict == nil {
			continue
		}
		if err := l.walkPageTree(kidDict, inh, depth+1, doc); err != nil {
			return err
		}
	}
	return nil
}

func (l *objectLoader) rectangle(obj raw.Object) (document.Rectangle, bool) {
	resolved, err := l.resolve(obj)
	if err != nil {
		return document.Rectangle{}, false
	}
	arr, ok := resolved.(*raw.Array)
	if !ok || len(arr.Items) != 4 {
		return document.Rectangle{}, false
	}
	var vals [4]float64
	for i, item := range arr.Items {
		r, err := l.resolve(item)
		if err != nil {
			return document.Rectangle{}, false
		}
		n, ok := r.(raw.Number)
		if !ok {
			return document.Rectangle{}, false
		}
		vals[i] = n.Value()
	}
	rect := document.Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}
	if rect.LLX > rect.URX {
		rect.LLX, rect.URX = rect.URX, rect.LLX
	}
	if rect.LLY > rect.URY {
		rect.LLY, rect.URY = rect.URY, rect.LLY
	}
	return rect, true
}

func (l *objectLoader) buildPage(node *raw.Dict, inh inherited) (*document.Page, error) {
	page := document.NewPage(inh.mediaBox)
	page.Rotate = inh.rotate

	content, err := l.pageContent(node)
	if err != nil {
		return nil, err
	}
	// Content errors degrade to an empty page rather than failing the
	// whole document.
	if ops, err := contentstream.Parse(content); err == nil {
		page.Ops = ops
	}

	if inh.resources != nil {
		l.loadResources(inh.resources, page)
	}
	return page, nil
}

// pageContent decodes and concatenates the page's content streams.
func (l *objectLoader) pageContent(node *raw.Dict) ([]byte, error) {
	obj, err := l.resolve(node.Get("Contents"))
	if err != nil {
		return nil, err
	}
	var parts [][]byte
	collect := func(o raw.Object) error {
		r, err := l.resolve(o)
		if err != nil {
			return err
		}
		stream, ok := r.(*raw.Stream)
		if !ok {
			return nil
		}
		data, err := l.decodeStream(stream)
		if err != nil {
			return nil // skip undecodable streams
		}
		parts = append(parts, data)
		return nil
	}
	switch v := obj.(type) {
	case *raw.Stream:
		if data, err := l.decodeStream(v); err == nil {
			parts = append(parts, data)
		}
	case *raw.Array:
		for _, item := range v.Items {
			if err := collect(item); err != nil {
				return nil, err
			}
		}
	}
	return bytes.Join(parts, []byte("\n")), nil
}

// decodeStream applies the stream's filter chain.
func (l *objectLoader) decodeStream(stream *raw.Stream) ([]byte, error) {
	data := stream.Data
	for _, name := range filterNames(stream.Dict) {
		dec, err := filters.Decode(name, data)
		if err != nil {
			return nil, err
		}
		data = dec
	}
	return data, nil
}

func filterNames(dict *raw.Dict) []string {
	switch v := dict.Get("Filter").(type) {
	case raw.Name:
		return []string{v.Val}
	case *raw.Array:
		var names []string
		for _, item := range v.Items {
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Val)
			}
		}
		return names
	}
	return nil
}

func (l *objectLoader) loadResources(res *raw.Dict, page *document.Page) {
	if xo, err := l.resolveDict(res.Get("XObject")); err == nil && xo != nil {
		for name, ref := range xo.KV {
			img, err := l.loadImageXObject(ref)
			if err != nil || img == nil {
				continue
			}
			page.Resources.Images[name] = img
		}
	}
	if fo, err := l.resolveDict(res.Get("Font")); err == nil && fo != nil {
		for name, ref := range fo.KV {
			fd, err := l.resolveDict(ref)
			if err != nil {
				continue
			}
			if base, ok := fd.GetName("BaseFont"); ok {
				page.Resources.Fonts[name] = base
			}
		}
	}
	if gs, err := l.resolveDict(res.Get("ExtGState")); err == nil && gs != nil {
		for name, ref := range gs.KV {
			gd, err := l.resolveDict(ref)
			if err != nil {
				continue
			}
			if ca, ok := gd.GetNumber("ca"); ok {
				page.Resources.ExtGStates[name] = ca
			}
		}
	}
}

// loadImageXObject builds a document.Image from an image XObject
// stream. Form XObjects and exotic encodings return nil.
func (l *objectLoader) loadImageXObject(obj raw.Object) (*document.Image, error) {
	r, err := l.resolve(obj)
	if err != nil {
		return nil, err
	}
	stream, ok := r.(*raw.Stream)
	if !ok {
		return nil, nil
	}
	if sub, _ := stream.Dict.GetName("Subtype"); sub != "Image" {
		return nil, nil
	}
	w, _ := stream.Dict.GetInt("Width")
	h, _ := stream.Dict.GetInt("Height")
	bpc, ok := stream.Dict.GetInt("BitsPerComponent")
	if !ok {
		bpc = 8
	}
	cs := "DeviceRGB"
	if name, ok := stream.Dict.GetName("ColorSpace"); ok {
		cs = name
	}
	img := &document.Image{
		Width:            int(w),
		Height:           int(h),
		ColorSpace:       cs,
		BitsPerComponent: int(bpc),
	}
	names := filterNames(stream.Dict)
	switch {
	case len(names) == 1 && names[0] == "DCTDecode":
		img.Filter = "DCTDecode"
		img.Data = stream.Data
	case len(names) == 0:
		img.Data = stream.Data
	default:
		data, err := l.decodeStream(stream)
		if err != nil {
			return nil, nil
		}
		img.Data = data
	}
	if smObj := stream.Dict.Get("SMask"); smObj != nil {
		if sm, err := l.loadImageXObject(smObj); err == nil {
			img.SMask = sm
		}
	}
	return img, nil
}
