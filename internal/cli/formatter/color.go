package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// PriorityStyle colors P1 red through P4 dim.
func PriorityStyle(p domain.Priority) lipgloss.Style {
	switch p {
	case domain.PriorityP1:
		return StyleRed
	case domain.PriorityP2:
		return StyleYellow
	case domain.PriorityP4:
		return StyleDim
	default:
		return StyleFg
	}
}

// ActiveIndicator renders "● active" or "○ paused".
func ActiveIndicator(active bool) string {
	if active {
		return StyleGreen.Render("● active")
	}
	return StyleDim.Render("○ paused")
}

func OutcomeStyle(o materialize.Outcome) lipgloss.Style {
	switch o {
	case materialize.OutcomeMaterialized:
		return StyleGreen
	case materialize.OutcomeLeaseHeld, materialize.OutcomeBackoff, materialize.OutcomeInactive:
		return StyleDim
	case materialize.OutcomeNeedsReview, materialize.OutcomeLeaseLost:
		return StyleYellow
	default:
		return StyleRed
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
