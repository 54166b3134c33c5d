package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Styles degrade to plain text automatically when stdout is not a terminal.
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	aliveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	deadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Successf prints a green confirmation line to stdout.
func Successf(format string, args ...any) {
	fmt.Println(successStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// Warnf prints a yellow notice line to stdout.
func Warnf(format string, args ...any) {
	fmt.Println(warnStyle.Render("! " + fmt.Sprintf(format, args...)))
}

// Liveness renders a record's liveness marker for list output.
func Liveness(alive bool) string {
	if alive {
		return aliveStyle.Render("●")
	}
	return deadStyle.Render("○")
}
