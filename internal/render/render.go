package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format represents an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an --output value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Options for rendering
type Options struct {
	Format Format
	Color  string
}

// Renderer handles output rendering
type Renderer struct {
	writer io.Writer
	opts   Options
	color  bool
}

// NewRenderer creates a new renderer. Colors are only used on a terminal
// unless forced.
func NewRenderer(writer io.Writer, opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	return &Renderer{
		writer: writer,
		opts:   opts,
		color:  useColor(writer, opts.Color),
	}
}

func useColor(w io.Writer, mode string) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Format returns the output format
func (r *Renderer) Format() Format {
	return r.opts.Format
}

// Writer returns the underlying writer
func (r *Renderer) Writer() io.Writer {
	return r.writer
}

// Render writes data as JSON or YAML. Table output needs a dedicated
// renderer and is rejected here.
func (r *Renderer) Render(data interface{}) error {
	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(data)
	case FormatYAML:
		return r.RenderYAML(data)
	default:
		return fmt.Errorf("format %s needs a table renderer", r.opts.Format)
	}
}

// RenderJSON renders data as indented JSON
func (r *Renderer) RenderJSON(data interface{}) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// RenderYAML renders data as YAML
func (r *Renderer) RenderYAML(data interface{}) error {
	encoder := yaml.NewEncoder(r.writer)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

// RenderTable renders rows under headers. Nothing is written for no rows.
func (r *Renderer) RenderTable(title string, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	t := r.newTable(title)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}
	t.Render()
}

func (r *Renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.writer)
	t.SetStyle(table.StyleRounded)
	if !r.color {
		t.SetStyle(table.StyleLight)
	}
	t.Style().Format.Header = text.FormatDefault
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// Colorize wraps s in colors when the renderer writes colored output
func (r *Renderer) Colorize(s string, colors ...text.Color) string {
	if !r.color || len(colors) == 0 {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

// Printf writes formatted text
func (r *Renderer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}
