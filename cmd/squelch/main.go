package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/linuxmatters/squelch/internal/cli"
	"github.com/linuxmatters/squelch/internal/config"
	"github.com/linuxmatters/squelch/internal/logging"
	"github.com/linuxmatters/squelch/internal/station"
	"github.com/rs/zerolog"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version  bool   `short:"v" help:"Show version information"`
	Config   string `short:"c" type:"path" help:"Path to TOML config file (optional)"`
	Logs     bool   `help:"Write an analysis report beside each filtered capture"`
	LogLevel string `name:"log-level" help:"Diagnostic log level (debug, info, warn, error)"`
	LogDir   string `name:"log-dir" type:"path" help:"Directory for squelch-debug.log while the UI is running"`
	NoTUI    bool   `name:"no-tui" help:"Print plain progress logs instead of the terminal UI"`

	Filter      FilterCmd      `cmd:"" default:"withargs" help:"Trim silence from captures"`
	Spectrogram SpectrogramCmd `cmd:"" help:"Render the mean power plot of captures"`
	Record      RecordCmd      `cmd:"" help:"Record scheduled captures and filter each one as it finishes"`
}

// Tunables are the filter settings that flags may override
type Tunables struct {
	Threshold *float64 `help:"Mean power at or above which a frame is kept"`
	Radius    *int     `help:"Frames kept either side of a flagged frame"`
	Workers   *int     `short:"j" help:"Chunks analysed in parallel"`
	Format    string   `help:"Compressed copy format (mp3, flac, none)"`
	NoPlot    bool     `name:"no-plot" help:"Skip the power plot"`
}

// FilterCmd filters capture files given on the command line
type FilterCmd struct {
	Tunables
	Files []string `arg:"" name:"files" help:"Capture WAV files to filter" type:"existingfile" optional:""`
}

// SpectrogramCmd renders power plots without filtering
type SpectrogramCmd struct {
	Files []string `arg:"" name:"files" help:"Capture WAV files to plot" type:"existingfile"`
}

// RecordCmd runs the capture scheduler
type RecordCmd struct {
	Tunables
	Library   string `type:"path" help:"Directory captures are written to"`
	Frequency *int   `help:"Receiver frequency in Hz"`
}

// app carries what every command needs once flags and config are resolved
type app struct {
	cli     *CLI
	cfg     *config.Config
	log     zerolog.Logger
	station station.Info
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("squelch"),
		kong.Description("Silence filter and scheduler for radio captures"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	cfg, err := config.Loader{}.Load(cliArgs.Config)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	if cliArgs.LogLevel != "" {
		cfg.LogLevel = cliArgs.LogLevel
	}

	// The TUI owns the terminal, so diagnostics go to a file
	var logOut io.Writer = os.Stderr
	if !cliArgs.NoTUI {
		f, err := logging.OpenDiagFile(cliArgs.LogDir)
		if err != nil {
			cli.PrintError(err.Error())
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log, err := logging.NewDiagLogger(logOut, cfg.LogLevel, !cliArgs.NoTUI)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	a := &app{cli: cliArgs, cfg: cfg, log: log, station: station.Detect()}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch ctx.Command() {
	case "filter", "filter <files>":
		if len(cliArgs.Filter.Files) == 0 {
			cli.PrintError("No input files specified")
			ctx.PrintUsage(false)
			os.Exit(1)
		}
		err = a.runFilter(sigCtx, cliArgs.Filter.Files, cliArgs.Filter.Tunables)
	case "spectrogram <files>":
		err = a.runSpectrogram(sigCtx, cliArgs.Spectrogram.Files)
	case "record":
		err = a.runRecord(sigCtx, cliArgs.Record)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("squelch failed")
		cli.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

// apply overrides the loaded filter settings with any flags given
func (t Tunables) apply(cfg *config.Config) error {
	f := cfg.Filter
	if t.Threshold != nil {
		f.Threshold = *t.Threshold
	}
	if t.Radius != nil {
		f.DilationRadius = *t.Radius
	}
	if t.Workers != nil {
		f.Workers = *t.Workers
	}
	if t.Format != "" {
		f.CompressedFormat = t.Format
	}
	if t.NoPlot {
		f.PlotEnabled = false
	}
	return cfg.Validate()
}
