// Command doctool runs the toolkit from the command line. Each
// subcommand drives one tool session; `run` executes a JavaScript
// batch script instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/wudi/doctool/observability"
	"github.com/wudi/doctool/raster"
	"github.com/wudi/doctool/scripting"
	"github.com/wudi/doctool/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "doctool: %v\n", err)
		os.Exit(1)
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: doctool <command> [flags] <file>...

PDF commands:
  merge        Concatenate PDFs into one
  split        Extract a page range, e.g. -range 1-3,5
  organize     Reorder pages, e.g. -order 3,1,2
  rotate       Rotate all pages, -degrees 90|180|270
  compress     Recompress embedded images
  pdf2jpg      Export each page as a JPEG
  jpg2pdf      Build a PDF from images
  watermark    Stamp text on every page, -text TEXT
  protect      Add a password (prompted)
  unlock       Remove a password (prompted)
  md2pdf       Render a markdown file as a PDF
  html2pdf     Render an HTML file as a PDF

Image commands:
  imgcompress  Re-encode as JPEG, -quality 0.8
  imgresize    Resize, -width N [-height N]
  imgcrop      Cut a region, -rect x0,y0,x1,y1
  imgrotate    Rotate, -degrees 90|180|270
  imgwatermark Stamp text, -text TEXT [-anchor center]

Scripting:
  run          Execute a JavaScript file against the toolkit

Common flags: -out DIR (default .), -v (verbose logging)
`)
}

// command maps a CLI verb to its session tool.
var commands = map[string]session.Tool{
	"merge":        session.ToolMerge,
	"split":        session.ToolSplit,
	"organize":     session.ToolOrganize,
	"rotate":       session.ToolRotatePDF,
	"compress":     session.ToolCompressPDF,
	"pdf2jpg":      session.ToolPDFToJPG,
	"jpg2pdf":      session.ToolJPGToPDF,
	"watermark":    session.ToolWatermarkPDF,
	"protect":      session.ToolProtect,
	"unlock":       session.ToolUnlock,
	"md2pdf":       session.ToolTextToPDF,
	"html2pdf":     session.ToolHTMLToPDF,
	"imgcompress":  session.ToolCompressImage,
	"imgresize":    session.ToolResizeImage,
	"imgcrop":      session.ToolCropImage,
	"imgrotate":    session.ToolRotateImage,
	"imgwatermark": session.ToolWatermarkImage,
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage())
		return fmt.Errorf("missing command")
	}
	name, rest := args[0], args[1:]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Println(usage())
		return nil
	}
	if name == "run" {
		return runScript(rest)
	}
	tool, ok := commands[name]
	if !ok {
		fmt.Fprintln(os.Stderr, usage())
		return fmt.Errorf("unknown command %q", name)
	}
	return runTool(name, tool, rest)
}

func runTool(name string, tool session.Tool, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	outDir := fs.String("out", ".", "Output directory")
	verbose := fs.Bool("v", false, "Verbose logging")
	rangeExpr := fs.String("range", "", "Page range, e.g. 1-3,5")
	order := fs.String("order", "", "New page order, 1-based, e.g. 3,1,2")
	degrees := fs.Int("degrees", 90, "Rotation in degrees")
	text := fs.String("text", "", "Watermark text")
	anchor := fs.String("anchor", "center", "Watermark anchor")
	opacity := fs.Float64("opacity", 0, "Watermark opacity (0,1]")
	fontSize := fs.Float64("size", 0, "Watermark font size")
	quality := fs.Float64("quality", 0.8, "JPEG quality (0,1]")
	width := fs.Int("width", 0, "Target width in pixels")
	height := fs.Int("height", 0, "Target height in pixels")
	rect := fs.String("rect", "", "Crop rectangle x0,y0,x1,y1")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%s: no input files", name)
	}

	log := observability.NewWriterLogger(os.Stderr, *verbose)
	s := session.New(session.Config{
		Sink:   dirSink{dir: *outDir},
		Logger: log,
	})
	if err := s.SelectTool(tool); err != nil {
		return err
	}
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s.AddFiles(session.NewFile(filepath.Base(path), data))
	}
	if len(s.Files()) == 0 {
		return fmt.Errorf("%s: no usable input files", name)
	}

	opts := s.Options()
	opts.Range = *rangeExpr
	opts.Rotation = *degrees
	if *text != "" {
		opts.WatermarkText = *text
	}
	if *anchor != "" {
		opts.Anchor = raster.Anchor(*anchor)
	}
	if *opacity > 0 {
		opts.Opacity = *opacity
	}
	if *fontSize > 0 {
		opts.FontSize = *fontSize
	}
	opts.Quality = *quality
	opts.Width = *width
	opts.Height = *height

	switch tool {
	case session.ToolProtect, session.ToolUnlock:
		pw, err := readPassword()
		if err != nil {
			return err
		}
		opts.Password = pw
	case session.ToolOrganize:
		if err := applyOrder(s, *order); err != nil {
			return err
		}
	case session.ToolCropImage:
		if err := applyCrop(s, *rect); err != nil {
			return err
		}
	}

	s.Submit(context.Background())
	if s.Phase() != session.PhaseSucceeded {
		return fmt.Errorf("%s", s.Status())
	}
	fmt.Println(s.Status())
	return nil
}

// readPassword prompts on the terminal without echo; when stdin is not
// a terminal it reads one line instead.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	var pw string
	if _, err := fmt.Fscanln(os.Stdin, &pw); err != nil {
		return "", err
	}
	return pw, nil
}

// applyOrder reorders and trims the organizer board to the given
// 1-based page list.
func applyOrder(s *session.Session, order string) error {
	if order == "" {
		return nil
	}
	org, err := s.Organizer()
	if err != nil {
		return err
	}
	var want []int
	for _, part := range strings.Split(order, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > org.Len() {
			return fmt.Errorf("bad page order %q", order)
		}
		want = append(want, n-1)
	}
	// Move each wanted source page into place, then drop the rest.
	for to, src := range want {
		items := org.Items()
		from := -1
		for i, item := range items {
			if item.SourceIndex == src && i >= to {
				from = i
				break
			}
		}
		if from < 0 {
			return fmt.Errorf("bad page order %q", order)
		}
		if err := org.Reorder(from, to); err != nil {
			return err
		}
	}
	for org.Len() > len(want) {
		items := org.Items()
		org.Remove(items[len(items)-1].ID)
	}
	return nil
}

func applyCrop(s *session.Session, rect string) error {
	if rect == "" {
		return fmt.Errorf("imgcrop: -rect is required")
	}
	parts := strings.Split(rect, ",")
	if len(parts) != 4 {
		return fmt.Errorf("bad rectangle %q", rect)
	}
	var v [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("bad rectangle %q", rect)
		}
		v[i] = n
	}
	crp, err := s.Cropper()
	if err != nil {
		return err
	}
	crp.SetRect(image.Rect(v[0], v[1], v[2], v[3]))
	return nil
}

func runScript(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected one script file")
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	log := observability.NewWriterLogger(os.Stderr, *verbose)
	engine := scripting.NewEngine(&scripting.Toolkit{
		ReadFile:  os.ReadFile,
		WriteFile: func(name string, data []byte) error { return os.WriteFile(name, data, 0o644) },
		Log:       log,
	}, log)
	out, err := engine.Execute(context.Background(), string(src))
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Println(out)
	}
	return nil
}

// dirSink writes downloads into a directory.
type dirSink struct {
	dir string
}

func (d dirSink) Deliver(dl session.Download) error {
	path := filepath.Join(d.dir, dl.Name)
	if err := os.WriteFile(path, dl.Data, 0o644); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
