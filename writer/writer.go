// Package writer serializes the document model to PDF bytes: classic
// xref table, flate-compressed content streams, and optional Standard
// handler encryption.
package writer

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/wudi/doctool/contentstream"
	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/filters"
	"github.com/wudi/doctool/ir/raw"
	"github.com/wudi/doctool/security"
)

// Config controls output encoding.
type Config struct {
	// Compress flate-encodes content streams and raw image samples.
	Compress bool
	// Version is the header version, default "1.7".
	Version string
}

// Writer serializes documents under one Config.
type Writer struct {
	cfg Config
}

// New returns a Writer with the given config.
func New(cfg Config) *Writer {
	if cfg.Version == "" {
		cfg.Version = "1.7"
	}
	return &Writer{cfg: cfg}
}

// Serialize writes doc with the default config (compressed).
func Serialize(doc *document.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := New(Config{Compress: true}).Write(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type object struct {
	num  int
	body raw.Object
}

type builder struct {
	objects []object
}

func (b *builder) alloc() int {
	return len(b.objects) + 1
}

func (b *builder) add(body raw.Object) int {
	num := b.alloc()
	b.objects = append(b.objects, object{num: num, body: body})
	return num
}

// Write serializes doc to out.
func (w *Writer) Write(doc *document.Document, out io.Writer) error {
	b := &builder{}

	catalogNum := b.add(nil) // placeholder, filled below
	pagesNum := b.add(nil)

	kids := &raw.Array{}
	for _, page := range doc.Pages {
		pageNum, err := w.addPage(b, page, pagesNum)
		if err != nil {
			return err
		}
		kids.Items = append(kids.Items, raw.NewRef(pageNum, 0))
	}

	catalog := raw.NewDict()
	catalog.Set("Type", raw.Name{Val: "Catalog"})
	catalog.Set("Pages", raw.NewRef(pagesNum, 0))
	b.objects[catalogNum-1].body = catalog

	pages := raw.NewDict()
	pages.Set("Type", raw.Name{Val: "Pages"})
	pages.Set("Kids", kids)
	pages.Set("Count", raw.Int(int64(len(doc.Pages))))
	b.objects[pagesNum-1].body = pages

	var handler *security.Handler
	var encNum int
	fileID := w.fileID(doc, b)
	if user, owner, perms, on := doc.Encryption(); on {
		encDict, h, err := security.BuildStandardEncryption(user, owner, perms, fileID)
		if err != nil {
			return err
		}
		handler = h
		encNum = b.add(encDict)
	}

	return w.emit(b, out, doc, handler, encNum, fileID)
}

// addPage adds the page dict plus its content stream and resource
// objects, returning the page's object number.
func (w *Writer) addPage(b *builder, page *document.Page, parentNum int) (int, error) {
	content := contentstream.Serialize(page.Ops)
	contentDict := raw.NewDict()
	var contentData []byte
	if w.cfg.Compress {
		contentData = filters.FlateEncode(content)
		contentDict.Set("Filter", raw.Name{Val: "FlateDecode"})
	} else {
		contentData = content
	}
	contentDict.Set("Length", raw.Int(int64(len(contentData))))
	contentNum := b.add(&raw.Stream{Dict: contentDict, Data: contentData})

	resources := raw.NewDict()
	if len(page.Resources.Images) > 0 {
		xo := raw.NewDict()
		for _, name := range sortedKeys(page.Resources.Images) {
			imgNum, err := w.addImage(b, page.Resources.Images[name])
			if err != nil {
				return 0, err
			}
			xo.Set(name, raw.NewRef(imgNum, 0))
		}
		resources.Set("XObject", xo)
	}
	if len(page.Resources.Fonts) > 0 {
		fo := raw.NewDict()
		for _, name := range sortedKeys(page.Resources.Fonts) {
			fd := raw.NewDict()
			fd.Set("Type", raw.Name{Val: "Font"})
			fd.Set("Subtype", raw.Name{Val: "Type1"})
			fd.Set("BaseFont", raw.Name{Val: page.Resources.Fonts[name]})
			fd.Set("Encoding", raw.Name{Val: "WinAnsiEncoding"})
			fo.Set(name, raw.NewRef(b.add(fd), 0))
		}
		resources.Set("Font", fo)
	}
	if len(page.Resources.ExtGStates) > 0 {
		gs := raw.NewDict()
		for _, name := range sortedKeys(page.Resources.ExtGStates) {
			gd := raw.NewDict()
			gd.Set("Type", raw.Name{Val: "ExtGState"})
			gd.Set("ca", raw.Real(page.Resources.ExtGStates[name]))
			gd.Set("CA", raw.Real(page.Resources.ExtGStates[name]))
			gs.Set(name, raw.NewRef(b.add(gd), 0))
		}
		resources.Set("ExtGState", gs)
	}

	pageDict := raw.NewDict()
	pageDict.Set("Type", raw.Name{Val: "Page"})
	pageDict.Set("Parent", raw.NewRef(parentNum, 0))
	pageDict.Set("MediaBox", &raw.Array{Items: []raw.Object{
		raw.Real(page.MediaBox.LLX), raw.Real(page.MediaBox.LLY),
		raw.Real(page.MediaBox.URX), raw.Real(page.MediaBox.URY),
	}})
	if page.Rotate != 0 {
		pageDict.Set("Rotate", raw.Int(int64(page.Rotate)))
	}
	pageDict.Set("Resources", resources)
	pageDict.Set("Contents", raw.NewRef(contentNum, 0))
	return b.add(pageDict), nil
}

func (w *Writer) addImage(b *builder, img *document.Image) (int, error) {
	dict := raw.NewDict()
	dict.Set("Type", raw.Name{Val: "XObject"})
	dict.Set("Subtype", raw.Name{Val: "Image"})
	dict.Set("Width", raw.Int(int64(img.Width)))
	dict.Set("Height", raw.Int(int64(img.Height)))
	dict.Set("ColorSpace", raw.Name{Val: img.ColorSpace})
	dict.Set("BitsPerComponent", raw.Int(int64(img.BitsPerComponent)))

	data := img.Data
	switch {
	case img.Filter == "DCTDecode":
		dict.Set("Filter", raw.Name{Val: "DCTDecode"})
	case w.cfg.Compress:
		data = filters.FlateEncode(img.Data)
		dict.Set("Filter", raw.Name{Val: "FlateDecode"})
	}
	if img.SMask != nil {
		smNum, err := w.addImage(b, img.SMask)
		if err != nil {
			return 0, err
		}
		dict.Set("SMask", raw.NewRef(smNum, 0))
	}
	dict.Set("Length", raw.Int(int64(len(data))))
	return b.add(&raw.Stream{Dict: dict, Data: data}), nil
}

// fileID derives a deterministic /ID from document shape.
func (w *Writer) fileID(doc *document.Document, b *builder) []byte {
	h := md5.New()
	fmt.Fprintf(h, "%d:%d", len(doc.Pages), len(b.objects))
	for _, page := range doc.Pages {
		fmt.Fprintf(h, ":%d:%d", len(page.Ops), page.Rotate)
	}
	return h.Sum(nil)
}

// emit writes the header, object bodies, xref table and trailer.
func (w *Writer) emit(b *builder, out io.Writer, doc *document.Document, handler *security.Handler, encNum int, fileID []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", w.cfg.Version)

	offsets := make([]int64, len(b.objects)+1)
	for _, obj := range b.objects {
		offsets[obj.num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", obj.num)
		body := obj.body
		if handler != nil && obj.num != encNum {
			body = encryptObject(handler, obj.num, body)
		}
		serializeObject(&buf, body)
		buf.WriteString("\nendobj\n")
	}

	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= len(b.objects); num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}

	trailer := raw.NewDict()
	trailer.Set("Size", raw.Int(int64(len(b.objects)+1)))
	trailer.Set("Root", raw.NewRef(1, 0))
	trailer.Set("ID", &raw.Array{Items: []raw.Object{raw.Str(fileID), raw.Str(fileID)}})
	if encNum != 0 {
		trailer.Set("Encrypt", raw.NewRef(encNum, 0))
	}
	buf.WriteString("trailer\n")
	serializeObject(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	_, err := out.Write(buf.Bytes())
	return err
}

// encryptObject encrypts stream data and strings with the per-object
// key. Dict structure is shared with the plaintext model, so streams
// are copied before mutation.
func encryptObject(h *security.Handler, num int, obj raw.Object) raw.Object {
	switch v := obj.(type) {
	case *raw.Stream:
		enc, err := h.Encrypt(num, 0, v.Data, security.ClassStream)
		if err != nil {
			return obj
		}
		dict := raw.NewDict()
		for k, val := range v.Dict.KV {
			dict.Set(k, encryptObject(h, num, val))
		}
		dict.Set("Length", raw.Int(int64(len(enc))))
		return &raw.Stream{Dict: dict, Data: enc}
	case raw.String:
		enc, err := h.Encrypt(num, 0, v.Bytes, security.ClassString)
		if err != nil {
			return obj
		}
		return raw.String{Bytes: enc, Hex: v.Hex}
	case *raw.Dict:
		dict := raw.NewDict()
		for k, val := range v.KV {
			dict.Set(k, encryptObject(h, num, val))
		}
		return dict
	case *raw.Array:
		arr := &raw.Array{Items: make([]raw.Object, len(v.Items))}
		for i, item := range v.Items {
			arr.Items[i] = encryptObject(h, num, item)
		}
		return arr
	default:
		return obj
	}
}

// serializeObject renders one object body. Dict keys are emitted in
// sorted order so output is deterministic.
func serializeObject(buf *bytes.Buffer, obj raw.Object) {
	switch v := obj.(type) {
	case raw.Name:
		buf.WriteByte('/')
		buf.WriteString(v.Val)
	case raw.Number:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(strconv.FormatFloat(v.F, 'f', -1, 64))
		}
	case raw.Bool:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.Null, nil:
		buf.WriteString("null")
	case raw.String:
		writeHexString(buf, v.Bytes)
	case raw.Ref:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	case *raw.Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			serializeObject(buf, item)
		}
		buf.WriteByte(']')
	case *raw.Dict:
		writeDict(buf, v)
	case *raw.Stream:
		writeDict(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	}
}

func writeDict(buf *bytes.Buffer, d *raw.Dict) {
	buf.WriteString("<<")
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(" /")
		buf.WriteString(k)
		buf.WriteByte(' ')
		serializeObject(buf, d.KV[k])
	}
	buf.WriteString(" >>")
}

// writeHexString keeps binary-safe strings readable in the output.
func writeHexString(buf *bytes.Buffer, data []byte) {
	const hexDigits = "0123456789ABCDEF"
	buf.WriteByte('<')
	for _, c := range data {
		buf.WriteByte(hexDigits[c>>4])
		buf.WriteByte(hexDigits[c&0x0F])
	}
	buf.WriteByte('>')
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
