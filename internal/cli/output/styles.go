package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Table         lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Code          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// DefaultStyles returns the colored terminal styles.
func DefaultStyles() *Styles {
	return &Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Table:         lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Code:          lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).SetString("✓"),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗"),
	}
}

// PlainStyles returns styles that add no escape codes.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		Header1:       plain,
		Header2:       plain,
		Bold:          plain,
		Muted:         plain,
		Table:         plain,
		Warning:       plain,
		Error:         plain,
		Code:          plain,
		StatusSuccess: plain.SetString("OK"),
		StatusFailed:  plain.SetString("FAILED"),
	}
}
