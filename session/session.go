// Package session drives one tool interaction: pick a tool, collect
// files and options, run the operation, deliver the result, and reset.
// The lifecycle is Idle → Collecting → Processing → Succeeded or
// Failed, then back to Idle after a fixed delay or an explicit Back.
package session

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/mattetti/filebuffer"

	"github.com/wudi/doctool/cropper"
	"github.com/wudi/doctool/i18n"
	"github.com/wudi/doctool/observability"
	"github.com/wudi/doctool/organizer"
	"github.com/wudi/doctool/raster"
	"github.com/wudi/doctool/signature"
)

// Phase is the session lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseProcessing
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseProcessing:
		return "processing"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Tool identifies one operation.
type Tool string

const (
	ToolMerge        Tool = "merge"
	ToolSplit        Tool = "split"
	ToolOrganize     Tool = "organize"
	ToolRotatePDF    Tool = "rotatePdf"
	ToolCompressPDF  Tool = "compressPdf"
	ToolPDFToJPG     Tool = "pdfToJpg"
	ToolJPGToPDF     Tool = "jpgToPdf"
	ToolWatermarkPDF Tool = "watermarkPdf"
	ToolSign         Tool = "sign"
	ToolProtect      Tool = "protect"
	ToolUnlock       Tool = "unlock"
	ToolTextToPDF    Tool = "textToPdf"
	ToolHTMLToPDF    Tool = "htmlToPdf"

	ToolCompressImage  Tool = "compressImage"
	ToolResizeImage    Tool = "resizeImage"
	ToolCropImage      Tool = "cropImage"
	ToolRotateImage    Tool = "rotateImage"
	ToolWatermarkImage Tool = "watermarkImage"
)

// File is one uploaded input held in memory.
type File struct {
	Name string
	Data *filebuffer.Buffer
}

// NewFile wraps raw bytes as an upload.
func NewFile(name string, data []byte) File {
	return File{Name: name, Data: filebuffer.New(data)}
}

// Bytes returns the file content.
func (f File) Bytes() []byte {
	return f.Data.Buff.Bytes()
}

// Download is one produced output.
type Download struct {
	Name string
	MIME string
	Data []byte
}

// Sink receives downloads. The CLI binds it to an output directory.
type Sink interface {
	Deliver(Download) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Download) error

func (f SinkFunc) Deliver(d Download) error { return f(d) }

// Options is the per-tool configuration record. A fresh record is
// built when a tool is selected and discarded on reset.
type Options struct {
	Range         string // split, e.g. "1-3,5"
	Rotation      int    // accumulated quarter turns, degrees
	WatermarkText string
	Anchor        raster.Anchor
	FontSize      float64
	Opacity       float64
	Password      string
	Quality       float64 // image compress, (0, 1]
	Width         int
	Height        int
	KeepAspect    bool
}

// CancelFunc cancels a scheduled callback.
type CancelFunc func()

// Scheduler runs fn after d. Tests inject a manual implementation.
type Scheduler func(d time.Duration, fn func()) CancelFunc

func defaultScheduler(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// resetDelay is how long a terminal phase stays on screen.
const resetDelay = 3 * time.Second

// Config wires the session's collaborators. Zero values get safe
// defaults.
type Config struct {
	Sink       Sink
	Translate  i18n.TranslateFunc
	Logger     observability.Logger
	Tracer     observability.Tracer
	Scheduler  Scheduler
	ResetDelay time.Duration
}

// Session is single-owner state: all methods must be called from one
// goroutine, mirroring the cooperative scheduling of the surface it
// models.
type Session struct {
	sink       Sink
	translate  i18n.TranslateFunc
	log        observability.Logger
	tracer     observability.Tracer
	schedule   Scheduler
	resetDelay time.Duration

	tool   Tool
	phase  Phase
	files  []File
	opts   *Options
	status string

	// gen invalidates in-flight work and pending resets; every reset
	// bumps it.
	gen         int
	cancelReset CancelFunc

	org *organizer.Organizer
	crp *cropper.Cropper
	pad *signature.Pad
}

// New builds an idle session.
func New(cfg Config) *Session {
	s := &Session{
		sink:       cfg.Sink,
		translate:  cfg.Translate,
		log:        cfg.Logger,
		tracer:     cfg.Tracer,
		schedule:   cfg.Scheduler,
		resetDelay: cfg.ResetDelay,
	}
	if s.sink == nil {
		s.sink = SinkFunc(func(Download) error { return nil })
	}
	if s.translate == nil {
		s.translate = i18n.Default()
	}
	if s.log == nil {
		s.log = observability.NopLogger{}
	}
	if s.tracer == nil {
		s.tracer = observability.NopTracer()
	}
	if s.schedule == nil {
		s.schedule = defaultScheduler
	}
	if s.resetDelay <= 0 {
		s.resetDelay = resetDelay
	}
	return s
}

// Phase returns the lifecycle state.
func (s *Session) Phase() Phase { return s.phase }

// ActiveTool returns the selected tool, empty when idle.
func (s *Session) ActiveTool() Tool { return s.tool }

// Status returns the current user-facing message.
func (s *Session) Status() string { return s.status }

// Files returns the collected inputs.
func (s *Session) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Options returns the mutable option record for the active tool, or
// nil when idle.
func (s *Session) Options() *Options { return s.opts }

// SelectTool resets any previous state and opens the tool with a
// fresh option record.
func (s *Session) SelectTool(tool Tool) error {
	if !knownTool(tool) {
		return s.failNow(&toolError{tool})
	}
	s.reset()
	s.tool = tool
	s.phase = PhaseCollecting
	s.opts = defaultOptions(tool)
	if tool == ToolSign {
		// The pad is sized once, when the surface mounts.
		pad, err := signature.NewPad(500, 200)
		if err != nil {
			return err
		}
		s.pad = pad
	}
	s.log.Debug("tool selected", observability.String("tool", string(tool)))
	return nil
}

// defaultOptions builds the fresh per-tool record.
func defaultOptions(tool Tool) *Options {
	opts := &Options{
		Anchor:     raster.AnchorCenter,
		FontSize:   24,
		Opacity:    0.5,
		Quality:    0.8,
		KeepAspect: true,
	}
	if tool == ToolWatermarkPDF {
		opts.FontSize = 48
		opts.Opacity = 0.3
	}
	return opts
}

func knownTool(tool Tool) bool {
	switch tool {
	case ToolMerge, ToolSplit, ToolOrganize, ToolRotatePDF, ToolCompressPDF,
		ToolPDFToJPG, ToolJPGToPDF, ToolWatermarkPDF, ToolSign, ToolProtect,
		ToolUnlock, ToolTextToPDF, ToolHTMLToPDF, ToolCompressImage,
		ToolResizeImage, ToolCropImage, ToolRotateImage, ToolWatermarkImage:
		return true
	}
	return false
}

// MultiFile reports whether the tool accepts more than one input.
func MultiFile(tool Tool) bool {
	return tool == ToolMerge || tool == ToolJPGToPDF
}

// Accepts reports whether the tool takes the given filename, by
// extension.
func Accepts(tool Tool, name string) bool {
	ext := strings.ToLower(path.Ext(name))
	switch tool {
	case ToolJPGToPDF, ToolCompressImage, ToolResizeImage, ToolCropImage,
		ToolRotateImage, ToolWatermarkImage:
		return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif"
	case ToolTextToPDF:
		return ext == ".md" || ext == ".txt" || ext == ".markdown"
	case ToolHTMLToPDF:
		return ext == ".html" || ext == ".htm"
	default:
		return ext == ".pdf"
	}
}

// AddFiles appends accepted inputs. Non-matching files are dropped the
// way a picker filter hides them; single-file tools keep only the
// first file.
func (s *Session) AddFiles(files ...File) {
	if s.phase != PhaseCollecting {
		return
	}
	for _, f := range files {
		if !Accepts(s.tool, f.Name) {
			s.log.Warn("file rejected", observability.String("name", f.Name))
			continue
		}
		if !MultiFile(s.tool) && len(s.files) >= 1 {
			break
		}
		s.files = append(s.files, f)
	}
	// Interactive sub-state depends on the chosen file.
	s.org = nil
	s.crp = nil
}

// ClearFiles drops the collected inputs but keeps the tool open.
func (s *Session) ClearFiles() {
	if s.phase != PhaseCollecting {
		return
	}
	s.files = nil
	s.org = nil
	s.crp = nil
}

// Back abandons the tool immediately: pending results are discarded
// and the session returns to Idle without waiting for the reset delay.
func (s *Session) Back() {
	s.reset()
}

// reset returns the session to Idle and invalidates in-flight work.
func (s *Session) reset() {
	s.gen++
	if s.cancelReset != nil {
		s.cancelReset()
		s.cancelReset = nil
	}
	s.tool = ""
	s.phase = PhaseIdle
	s.files = nil
	s.opts = nil
	s.status = ""
	s.org = nil
	s.crp = nil
	s.pad = nil
}

// Submit runs the active tool. It validates inputs, moves to
// Processing, and lands in Succeeded or Failed; both terminal phases
// schedule the automatic return to Idle.
func (s *Session) Submit(ctx context.Context) {
	if s.phase != PhaseCollecting {
		return
	}
	gen := s.gen
	s.phase = PhaseProcessing
	s.status = s.translate(i18n.KeyStatusProcessing)

	ctx, span := s.tracer.StartSpan(ctx, "session.submit")
	span.SetTag("tool", string(s.tool))
	start := time.Now()

	statusKey, statusArgs, err := s.process(ctx)

	span.SetError(err)
	span.Finish()
	s.log.Info("tool finished",
		observability.String("tool", string(s.tool)),
		observability.Int64(observability.MetricToolRunTime, time.Since(start).Milliseconds()),
		observability.Error("err", err))

	// The session may have been torn down while processing; late
	// results are dropped.
	if s.gen != gen {
		return
	}
	if err != nil {
		s.phase = PhaseFailed
		s.status = s.translate(s.errorKey(err))
	} else {
		s.phase = PhaseSucceeded
		if statusKey == "" {
			statusKey = i18n.KeyStatusSuccess
		}
		s.status = s.translate(statusKey, statusArgs...)
	}
	s.cancelReset = s.schedule(s.resetDelay, func() {
		if s.gen == gen {
			s.reset()
		}
	})
}

// failNow reports an error outside the submit path.
func (s *Session) failNow(err error) error {
	s.status = s.translate(s.errorKey(err))
	return err
}

type toolError struct {
	tool Tool
}

func (e *toolError) Error() string {
	return "unknown tool " + string(e.tool)
}
