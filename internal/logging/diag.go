package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// DiagFileName is where the diagnostic log goes while the TUI owns the terminal
const DiagFileName = "squelch-debug.log"

// NewDiagLogger returns a console-formatted zerolog logger writing to w at
// the named level (debug, info, warn, error). An empty level means info.
func NewDiagLogger(w io.Writer, level string, noColor bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    noColor,
	}
	return zerolog.New(consoleWriter).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger(), nil
}

// OpenDiagFile opens (appending) the diagnostic log file in dir
func OpenDiagFile(dir string) (*os.File, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return os.OpenFile(filepath.Join(dir, DiagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
