package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 100

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// configureColor turns styling off for --no-color, NO_COLOR, and output that
// is not a terminal, and otherwise picks the profile the terminal supports.
func configureColor(w io.Writer, disable bool) {
	if disable || os.Getenv("NO_COLOR") != "" || !isTerminal(w) {
		color.NoColor = true
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	color.NoColor = false
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

// terminalWidth returns the column count of w, or defaultWidth.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting output as JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
