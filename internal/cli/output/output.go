// Package output renders command results for terminals, pipes and scripts.
//
// In auto mode a terminal gets styled text and anything else gets markdown,
// which reads well both for people and for tools consuming the output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// OutputMode selects how results are rendered.
type OutputMode string //nolint:revive // output.OutputMode reads fine at call sites

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Modes lists the accepted --output values.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}

// Mode parses an --output value. Unknown values fall back to auto.
func Mode(s string) OutputMode {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText
	case ModeMarkdown, "md":
		return ModeMarkdown
	case ModeJSON:
		return ModeJSON
	default:
		return ModeAuto
	}
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   OutputMode
	isTTY  bool
	styles *Styles
}

// NewRenderer detects whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY skips detection. Used by tests.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	styles := PlainStyles()
	if isTTY {
		styles = DefaultStyles()
	}
	return &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY, styles: styles}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// EffectiveMode resolves auto to text or markdown.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the active styles; plain when not on a terminal.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the stdout writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line to stdout.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to stdout.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a level 1 or 2 heading in the effective mode.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println("")
		return
	}
	style := r.styles.Header1
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println(style.Render(text))
}

// Success writes a success line to stdout.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.StatusSuccess.String() + " " + msg)
}

// Warning writes a warning line to stderr.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("Warning: "+msg))
}

// Error writes an error line to stderr.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("Error: "+msg))
}

// Muted writes a de-emphasised line to stdout.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// JSON writes v as indented JSON to stdout.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader returns a markdown heading.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown bullet "- **key:** value".
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCodeBlock wraps code in a fenced block.
func FormatCodeBlock(lang, code string) string {
	return "```" + lang + "\n" + strings.TrimRight(code, "\n") + "\n```"
}
