package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared by plain output and help. Colours follow a receiver's
// squelch indicator: red for the brand and faults, amber while the squelch
// is held closed, green once a signal opens it.
var (
	brandColor  = lipgloss.Color("#A40000")
	closedColor = lipgloss.Color("#FFA500")
	openColor   = lipgloss.Color("#00AA00")
	dialColor   = lipgloss.Color("#00AAAA")
	dimColor    = lipgloss.Color("#888888")
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(brandColor).MarginBottom(1)
	faultStyle   = lipgloss.NewStyle().Bold(true).Foreground(brandColor)
	waitingStyle = lipgloss.NewStyle().Italic(true).Foreground(closedColor)
	labelStyle   = lipgloss.NewStyle().Foreground(dimColor)
	readingStyle = lipgloss.NewStyle().Bold(true).Foreground(openColor)
)

// labelWidth fits the longest recorder label ("Library:", "Station:")
const labelWidth = 9

// PrintVersion prints the banner and version
func PrintVersion(version string) {
	writeVersion(os.Stdout, version)
}

// PrintKeyValue prints one aligned "label: reading" line, as used for the
// station and tuning summary before recording starts
func PrintKeyValue(key, value string) {
	writeKeyValue(os.Stdout, key, value)
}

// PrintNotice prints a status line to stderr, out of the way of results on stdout
func PrintNotice(message string) {
	fmt.Fprintln(os.Stderr, waitingStyle.Render(message))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", faultStyle.Render("Error:"), message)
}

func writeVersion(w io.Writer, version string) {
	fmt.Fprintln(w, bannerStyle.Render("Squelch 📻"))
	writeKeyValue(w, "Version", version)
	fmt.Fprintln(w)
}

func writeKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, key+":")), readingStyle.Render(value))
}
