// Package testutil provides helpers for testing CLI commands.
package testutil

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/rdm/internal/cli/output"
)

// TestRenderer wraps a Renderer with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer with the given mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a text renderer on a simulated terminal.
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a markdown renderer.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// Output returns the stdout output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes terminal escape codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headings.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
