// Package scripting embeds a JavaScript engine so batch jobs can drive
// the toolkit: a script gets a `pdf` object whose methods read, process
// and write documents through an injected file accessor.
package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/document"
	"github.com/wudi/doctool/observability"
	"github.com/wudi/doctool/optimize"
	"github.com/wudi/doctool/parser"
	"github.com/wudi/doctool/render"
	"github.com/wudi/doctool/security"
	"github.com/wudi/doctool/writer"
)

// Toolkit exposes file-to-file operations to scripts. ReadFile and
// WriteFile are injected so the engine stays testable and the CLI
// decides where outputs land.
type Toolkit struct {
	ReadFile  func(name string) ([]byte, error)
	WriteFile func(name string, data []byte) error
	Log       observability.Logger
}

func (t *Toolkit) logger() observability.Logger {
	if t.Log == nil {
		return observability.NopLogger{}
	}
	return t.Log
}

func (t *Toolkit) load(name, password string) (*document.Document, error) {
	data, err := t.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return parser.Load(data, password)
}

func (t *Toolkit) save(name string, doc *document.Document) error {
	data, err := writer.Serialize(doc)
	if err != nil {
		return err
	}
	t.logger().Info("script output",
		observability.String("name", name),
		observability.Int(observability.MetricOutputBytes, len(data)))
	return t.WriteFile(name, data)
}

// Merge concatenates the inputs into one document.
func (t *Toolkit) Merge(inputs []string, output string) error {
	if len(inputs) == 0 {
		return doctool.ErrNoFileSelected
	}
	out := document.CreateEmpty()
	for _, name := range inputs {
		doc, err := t.load(name, "")
		if err != nil {
			return err
		}
		all := make([]int, doc.PageCount())
		for i := range all {
			all[i] = i
		}
		out.AppendPages(doc.CopyPages(all)...)
	}
	return t.save(output, out)
}

// Split extracts the pages named by a range expression like "1-3,5".
func (t *Toolkit) Split(input, rangeExpr, output string) error {
	if rangeExpr == "" {
		return &doctool.MissingParameterError{Name: "page range"}
	}
	doc, err := t.load(input, "")
	if err != nil {
		return err
	}
	out := document.CreateEmpty()
	out.AppendPages(doc.CopyPages(document.ParsePageRanges(rangeExpr, doc.PageCount()))...)
	return t.save(output, out)
}

// Rotate turns every page by the given quarter-turn angle.
func (t *Toolkit) Rotate(input string, degrees int, output string) error {
	doc, err := t.load(input, "")
	if err != nil {
		return err
	}
	for _, p := range doc.Pages {
		if err := p.RotateBy(degrees); err != nil {
			return err
		}
	}
	return t.save(output, doc)
}

// Compress recompresses embedded images and rewrites the file.
func (t *Toolkit) Compress(input, output string) error {
	doc, err := t.load(input, "")
	if err != nil {
		return err
	}
	optimize.Document(doc, optimize.DefaultConfig)
	return t.save(output, doc)
}

// Protect encrypts the document with the given user password.
func (t *Toolkit) Protect(input, password, output string) error {
	if password == "" {
		return &doctool.MissingParameterError{Name: "password"}
	}
	doc, err := t.load(input, "")
	if err != nil {
		return err
	}
	doc.SetEncryption(password, "", security.Permissions{Print: true, Copy: true})
	return t.save(output, doc)
}

// Unlock removes encryption from a password-protected document.
func (t *Toolkit) Unlock(input, password, output string) error {
	if password == "" {
		return &doctool.MissingParameterError{Name: "password"}
	}
	doc, err := t.load(input, password)
	if err != nil {
		return err
	}
	doc.ClearEncryption()
	return t.save(output, doc)
}

// PageCount returns the number of pages in a document.
func (t *Toolkit) PageCount(input string) (int, error) {
	doc, err := t.load(input, "")
	if err != nil {
		return 0, err
	}
	return doc.PageCount(), nil
}

// Export renders each page as a JPEG named "<prefix>_<n>.jpg".
func (t *Toolkit) Export(input, prefix string) error {
	doc, err := t.load(input, "")
	if err != nil {
		return err
	}
	for i, p := range doc.Pages {
		data, err := render.PageJPEG(p, render.ExportScale, 90)
		if err != nil {
			return err
		}
		if err := t.WriteFile(fmt.Sprintf("%s_%d.jpg", prefix, i+1), data); err != nil {
			return err
		}
	}
	return nil
}

// Engine runs scripts against a Toolkit.
type Engine struct {
	toolkit *Toolkit
	log     observability.Logger
}

// NewEngine binds a toolkit to a fresh engine.
func NewEngine(tk *Toolkit, log observability.Logger) *Engine {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Engine{toolkit: tk, log: log}
}

// Execute runs a script. Cancelling the context interrupts execution,
// including scripts stuck in loops. The value of the final expression
// is returned as a string, empty for undefined.
func (e *Engine) Execute(ctx context.Context, src string) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	if err := vm.Set("pdf", e.toolkit); err != nil {
		return "", fmt.Errorf("scripting: bind toolkit: %w", err)
	}
	if err := vm.Set("log", func(args ...interface{}) {
		e.log.Info(fmt.Sprint(args...))
	}); err != nil {
		return "", fmt.Errorf("scripting: bind log: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	done := make(chan struct{})
	defer close(done)
	defer vm.ClearInterrupt()
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	value, err := vm.RunString(src)
	if err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if cause := interrupted.Unwrap(); cause != nil {
				return "", cause
			}
			return "", context.Canceled
		}
		return "", fmt.Errorf("scripting: %w", err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", nil
	}
	return value.String(), nil
}
