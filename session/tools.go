package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/cropper"
	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/i18n"
	"github.com/wudi/doctool/layout"
	"github.com/wudi/doctool/observability"
	"github.com/wudi/doctool/optimize"
	"github.com/wudi/doctool/organizer"
	"github.com/wudi/doctool/parser"
	"github.com/wudi/doctool/raster"
	"github.com/wudi/doctool/render"
	"github.com/wudi/doctool/security"
	"github.com/wudi/doctool/signature"
	"github.com/wudi/doctool/writer"
)

const (
	mimePDF  = "application/pdf"
	mimeJPEG = "image/jpeg"
)

// Organizer returns the page board for the organize tool, loading the
// selected file on first use.
func (s *Session) Organizer() (*organizer.Organizer, error) {
	if s.tool != ToolOrganize {
		return nil, &doctool.OperationUnsupportedError{Tool: string(s.tool)}
	}
	if s.org != nil {
		return s.org, nil
	}
	doc, err := s.loadSelected("")
	if err != nil {
		return nil, err
	}
	org, err := organizer.New(doc)
	if err != nil {
		return nil, err
	}
	s.org = org
	return org, nil
}

// Cropper returns the crop surface for the crop tool, loading the
// selected image on first use.
func (s *Session) Cropper() (*cropper.Cropper, error) {
	if s.tool != ToolCropImage {
		return nil, &doctool.OperationUnsupportedError{Tool: string(s.tool)}
	}
	if s.crp != nil {
		return s.crp, nil
	}
	if len(s.files) == 0 {
		return nil, doctool.ErrNoFileSelected
	}
	img, err := raster.LoadBytes(s.files[0].Bytes())
	if err != nil {
		return nil, err
	}
	s.crp = cropper.New(img)
	return s.crp, nil
}

// SignaturePad returns the drawing surface for the sign tool.
func (s *Session) SignaturePad() *signature.Pad {
	return s.pad
}

// process runs the active tool over the collected inputs. Multi-file
// tools fail on the first bad input; nothing is delivered on failure.
func (s *Session) process(ctx context.Context) (statusKey string, statusArgs []interface{}, err error) {
	if err := ctx.Err(); err != nil {
		return "", nil, doctool.Unexpected(err)
	}
	switch s.tool {
	case ToolMerge:
		err = s.runMerge()
	case ToolSplit:
		err = s.runSplit()
	case ToolOrganize:
		err = s.runOrganize()
	case ToolRotatePDF:
		err = s.runRotatePDF()
	case ToolCompressPDF:
		statusKey, statusArgs, err = s.runCompressPDF()
	case ToolPDFToJPG:
		err = s.runPDFToJPG()
	case ToolJPGToPDF:
		err = s.runJPGToPDF()
	case ToolWatermarkPDF:
		err = s.runWatermarkPDF()
	case ToolSign:
		err = s.runSign()
	case ToolProtect:
		statusKey, err = s.runProtect()
	case ToolUnlock:
		err = s.runUnlock()
	case ToolTextToPDF, ToolHTMLToPDF:
		err = s.runMarkupToPDF()
	case ToolCompressImage:
		statusKey, statusArgs, err = s.runCompressImage()
	case ToolResizeImage:
		err = s.runResizeImage()
	case ToolCropImage:
		err = s.runCropImage()
	case ToolRotateImage:
		err = s.runRotateImage()
	case ToolWatermarkImage:
		err = s.runWatermarkImage()
	default:
		err = &doctool.OperationUnsupportedError{Tool: string(s.tool)}
	}
	return statusKey, statusArgs, err
}

// loadSelected parses the single selected file as a document.
func (s *Session) loadSelected(password string) (*document.Document, error) {
	if len(s.files) == 0 {
		return nil, doctool.ErrNoFileSelected
	}
	return parser.Load(s.files[0].Bytes(), password)
}

func (s *Session) deliverPDF(name string, doc *document.Document) error {
	data, err := writer.Serialize(doc)
	if err != nil {
		return err
	}
	s.log.Info("output ready",
		observability.String("name", name),
		observability.Int(observability.MetricOutputBytes, len(data)))
	return s.sink.Deliver(Download{Name: name, MIME: mimePDF, Data: data})
}

func (s *Session) runMerge() error {
	if len(s.files) == 0 {
		return doctool.ErrNoFileSelected
	}
	out := document.CreateEmpty()
	for _, f := range s.files {
		doc, err := parser.Load(f.Bytes(), "")
		if err != nil {
			return err
		}
		all := make([]int, doc.PageCount())
		for i := range all {
			all[i] = i
		}
		out.AppendPages(doc.CopyPages(all)...)
	}
	return s.deliverPDF("merged.pdf", out)
}

func (s *Session) runSplit() error {
	if strings.TrimSpace(s.opts.Range) == "" {
		return &doctool.MissingParameterError{Name: "page range"}
	}
	doc, err := s.loadSelected("")
	if err != nil {
		return err
	}
	indices := document.ParsePageRanges(s.opts.Range, doc.PageCount())
	out := document.CreateEmpty()
	out.AppendPages(doc.CopyPages(indices)...)
	return s.deliverPDF("split.pdf", out)
}

func (s *Session) runOrganize() error {
	org, err := s.Organizer()
	if err != nil {
		return err
	}
	return s.deliverPDF("organized.pdf", org.Commit())
}

func (s *Session) runRotatePDF() error {
	doc, err := s.loadSelected("")
	if err != nil {
		return err
	}
	for _, p := range doc.Pages {
		if err := p.RotateBy(s.opts.Rotation); err != nil {
			return err
		}
	}
	return s.deliverPDF("rotated.pdf", doc)
}

func (s *Session) runCompressPDF() (string, []interface{}, error) {
	if len(s.files) == 0 {
		return "", nil, doctool.ErrNoFileSelected
	}
	in := len(s.files[0].Bytes())
	doc, err := s.loadSelected("")
	if err != nil {
		return "", nil, err
	}
	optimize.Document(doc, optimize.DefaultConfig)
	data, err := writer.Serialize(doc)
	if err != nil {
		return "", nil, err
	}
	if err := s.sink.Deliver(Download{Name: "compressed.pdf", MIME: mimePDF, Data: data}); err != nil {
		return "", nil, err
	}
	return i18n.KeyStatusCompressed, []interface{}{kb(in), kb(len(data))}, nil
}

func (s *Session) runPDFToJPG() error {
	doc, err := s.loadSelected("")
	if err != nil {
		return err
	}
	// Render everything before delivering anything, so a bad page does
	// not leave a partial export behind.
	outs := make([]Download, 0, doc.PageCount())
	for i, p := range doc.Pages {
		data, err := render.PageJPEG(p, render.ExportScale, 90)
		if err != nil {
			return err
		}
		outs = append(outs, Download{
			Name: fmt.Sprintf("page_%d.jpg", i+1),
			MIME: mimeJPEG,
			Data: data,
		})
	}
	for _, d := range outs {
		if err := s.sink.Deliver(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) runJPGToPDF() error {
	if len(s.files) == 0 {
		return doctool.ErrNoFileSelected
	}
	out := document.CreateEmpty()
	for _, f := range s.files {
		img, err := document.EmbedImage(f.Bytes())
		if err != nil {
			return err
		}
		// One pixel maps to one point; viewers fit the page to the
		// window anyway.
		page := out.AddPage(document.Rectangle{
			URX: float64(img.Width), URY: float64(img.Height),
		})
		page.DrawImage(img, 0, 0, float64(img.Width), float64(img.Height))
	}
	return s.deliverPDF("converted.pdf", out)
}

func (s *Session) runWatermarkPDF() error {
	text := strings.TrimSpace(s.opts.WatermarkText)
	if text == "" {
		return &doctool.MissingParameterError{Name: "watermark text"}
	}
	doc, err := s.loadSelected("")
	if err != nil {
		return err
	}
	for _, p := range doc.Pages {
		p.DrawText(text, document.TextOptions{
			X:        p.MediaBox.LLX + p.MediaBox.Width()/4,
			Y:        p.MediaBox.LLY + p.MediaBox.Height()/2,
			FontSize: s.opts.FontSize,
			Color:    [3]float64{0.5, 0.5, 0.5},
			Opacity:  s.opts.Opacity,
			Rotation: 45,
		})
	}
	return s.deliverPDF("watermarked.pdf", doc)
}

func (s *Session) runSign() error {
	if s.pad == nil || s.pad.IsBlank() {
		return &doctool.MissingParameterError{Name: "signature"}
	}
	doc, err := s.loadSelected("")
	if err != nil {
		return err
	}
	if doc.PageCount() == 0 {
		return &doctool.InvalidParameterError{Name: "document", Reason: "has no pages to sign"}
	}
	png, err := s.pad.ToImage()
	if err != nil {
		return err
	}
	img, err := document.EmbedImage(png)
	if err != nil {
		return err
	}
	// Stamp the last page, bottom right, at half the pad size.
	page := doc.Pages[len(doc.Pages)-1]
	w := float64(img.Width) / 2
	h := float64(img.Height) / 2
	const inset = 36
	page.DrawImage(img, page.MediaBox.URX-w-inset, page.MediaBox.LLY+inset, w, h)
	return s.deliverPDF("signed.pdf", doc)
}

func (s *Session) runProtect() (string, error) {
	if s.opts.Password == "" {
		return "", &doctool.MissingParameterError{Name: "password"}
	}
	doc, err := s.loadSelected("")
	if err != nil {
		return "", err
	}
	doc.SetEncryption(s.opts.Password, "", security.Permissions{Print: true, Copy: true})
	if err := s.deliverPDF("protected.pdf", doc); err != nil {
		return "", err
	}
	return i18n.KeyStatusProtected, nil
}

func (s *Session) runUnlock() error {
	if s.opts.Password == "" {
		return &doctool.MissingParameterError{Name: "password"}
	}
	doc, err := s.loadSelected(s.opts.Password)
	if err != nil {
		return err
	}
	doc.ClearEncryption()
	return s.deliverPDF("unlocked.pdf", doc)
}

func (s *Session) runMarkupToPDF() error {
	if len(s.files) == 0 {
		return doctool.ErrNoFileSelected
	}
	f := s.files[0]
	engine := layout.New()
	var doc *document.Document
	var err error
	if s.tool == ToolHTMLToPDF {
		doc, err = engine.RenderHTML(f.Bytes())
	} else {
		doc, err = engine.RenderMarkdown(f.Bytes())
	}
	if err != nil {
		return err
	}
	return s.deliverPDF(derivedName(f.Name, "converted", "pdf"), doc)
}

// loadImage parses the single selected file as a raster image.
func (s *Session) loadImage() (*raster.Image, File, error) {
	if len(s.files) == 0 {
		return nil, File{}, doctool.ErrNoFileSelected
	}
	f := s.files[0]
	img, err := raster.LoadBytes(f.Bytes())
	if err != nil {
		return nil, File{}, err
	}
	return img, f, nil
}

func (s *Session) deliverImage(name, mime string, data []byte) error {
	s.log.Info("output ready",
		observability.String("name", name),
		observability.Int(observability.MetricOutputBytes, len(data)))
	return s.sink.Deliver(Download{Name: name, MIME: mime, Data: data})
}

func (s *Session) runCompressImage() (string, []interface{}, error) {
	img, f, err := s.loadImage()
	if err != nil {
		return "", nil, err
	}
	in := len(f.Bytes())
	data, err := img.Compress(s.opts.Quality)
	if err != nil {
		return "", nil, err
	}
	// Compression always re-encodes as JPEG.
	name := derivedName(f.Name, "compressed", "jpg")
	if err := s.deliverImage(name, mimeJPEG, data); err != nil {
		return "", nil, err
	}
	return i18n.KeyStatusCompressed, []interface{}{kb(in), kb(len(data))}, nil
}

func (s *Session) runResizeImage() error {
	img, f, err := s.loadImage()
	if err != nil {
		return err
	}
	w, h := s.opts.Width, s.opts.Height
	if s.opts.KeepAspect {
		switch {
		case w > 0 && h <= 0:
			h = img.LockedHeight(w)
		case h > 0 && w <= 0:
			w = img.LockedWidth(h)
		}
	}
	data, err := img.Resize(w, h)
	if err != nil {
		return err
	}
	return s.deliverImage(derivedName(f.Name, "resized", extFor(img.MIME())), img.MIME(), data)
}

func (s *Session) runCropImage() error {
	crp, err := s.Cropper()
	if err != nil {
		return err
	}
	data, err := crp.Apply()
	if err != nil {
		return err
	}
	// Cropper() guarantees a selected file; reuse its decode.
	mime := crp.Image().MIME()
	return s.deliverImage(derivedName(s.files[0].Name, "cropped", extFor(mime)), mime, data)
}

func (s *Session) runRotateImage() error {
	img, f, err := s.loadImage()
	if err != nil {
		return err
	}
	data, err := img.Rotate(s.opts.Rotation)
	if err != nil {
		return err
	}
	return s.deliverImage(derivedName(f.Name, "rotated", extFor(img.MIME())), img.MIME(), data)
}

func (s *Session) runWatermarkImage() error {
	if strings.TrimSpace(s.opts.WatermarkText) == "" {
		return &doctool.MissingParameterError{Name: "watermark text"}
	}
	img, f, err := s.loadImage()
	if err != nil {
		return err
	}
	data, err := img.Watermark(s.opts.WatermarkText, raster.WatermarkOptions{
		Anchor:   s.opts.Anchor,
		FontSize: s.opts.FontSize,
		Opacity:  s.opts.Opacity,
	})
	if err != nil {
		return err
	}
	return s.deliverImage(derivedName(f.Name, "watermarked", extFor(img.MIME())), img.MIME(), data)
}

// kb renders a byte count as fixed-point kilobytes. Pre-formatted so
// the message printer cannot apply digit grouping.
func kb(n int) string {
	return strconv.FormatFloat(float64(n)/1024, 'f', 1, 64)
}

// derivedName builds "{base}_{suffix}.{ext}" from an input filename.
func derivedName(name, suffix, ext string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if base == "" {
		base = "output"
	}
	return base + "_" + suffix + "." + ext
}

func extFor(mime string) string {
	switch mime {
	case raster.MIMEPNG:
		return "png"
	case raster.MIMEGIF:
		return "gif"
	default:
		return "jpg"
	}
}

// errorKey maps a taxonomy error to the message key shown to the user.
func (s *Session) errorKey(err error) string {
	var le *doctool.LoadError
	if errors.As(err, &le) {
		switch le.Kind {
		case doctool.KindEncrypted:
			if s.tool == ToolUnlock {
				return i18n.KeyErrMissingPass
			}
			return i18n.KeyErrEncrypted
		case doctool.KindWrongPassword:
			return i18n.KeyErrWrongPassword
		default:
			return i18n.KeyErrMalformed
		}
	}
	var mp *doctool.MissingParameterError
	if errors.As(err, &mp) {
		switch mp.Name {
		case "page range":
			return i18n.KeyErrMissingRange
		case "password":
			return i18n.KeyErrMissingPass
		case "watermark text":
			return i18n.KeyErrMissingText
		case "signature":
			return i18n.KeyErrEmptySignature
		default:
			return i18n.KeyErrInvalidParam
		}
	}
	var de *doctool.DecodeError
	if errors.As(err, &de) {
		return i18n.KeyErrDecode
	}
	var ip *doctool.InvalidParameterError
	if errors.As(err, &ip) {
		return i18n.KeyErrInvalidParam
	}
	if errors.Is(err, doctool.ErrNoFileSelected) {
		return i18n.KeyErrNoFileSelected
	}
	var ou *doctool.OperationUnsupportedError
	if errors.As(err, &ou) {
		return i18n.KeyErrUnsupported
	}
	return i18n.KeyErrUnexpected
}
