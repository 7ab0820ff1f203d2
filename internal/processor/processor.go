package processor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linuxmatters/squelch/internal/audio"
	"github.com/linuxmatters/squelch/internal/chart"
	"github.com/linuxmatters/squelch/internal/encoder"
	"github.com/rs/zerolog"
)

// Pass numbers reported to progress callbacks
const (
	PassFilter      = 1
	PassSpectrogram = 2
)

// PassStats accumulates counters while a pass runs
type PassStats struct {
	Chunks         int
	FramesAnalysed int
	FramesFlagged  int
	FramesRetained int
	Segments       int // merged retained sample ranges
	SamplesIn      int64
	SamplesOut     int64
	PeakPower      float64
}

// ProgressFunc receives progress updates: pass is PassFilter or
// PassSpectrogram, progress runs from 0.0 to 1.0. stats may be nil.
type ProgressFunc func(pass int, passName string, progress float64, stats *PassStats)

// ChunkSource yields chunks in order and (nil, nil) once exhausted
type ChunkSource interface {
	NextChunk() (*audio.Chunk, error)
}

// ProcessingResult describes the artifacts of one filter run
type ProcessingResult struct {
	PassID         string
	InputPath      string
	OutputPath     string
	CompressedPath string // empty when no compressed copy was requested
	PlotPath       string // empty when plotting is disabled

	SampleRate     int
	BitDepth       int
	InputDuration  float64 // seconds
	OutputDuration float64 // seconds

	Filter      *PassStats
	Spectrogram *SpectrogramSummary
	Config      *FilterConfig

	FilterTime      time.Duration
	EncodeTime      time.Duration
	SpectrogramTime time.Duration
}

// RetainedRatio returns the fraction of input samples kept
func (r *ProcessingResult) RetainedRatio() float64 {
	if r.Filter == nil || r.Filter.SamplesIn == 0 {
		return 0
	}
	return float64(r.Filter.SamplesOut) / float64(r.Filter.SamplesIn)
}

// ProcessAudio runs the full pipeline for one capture:
// - Pass 1: stream the capture, keep flagged frames plus their surroundings,
// write <base>_filtered.wav and its compressed copy
// - Pass 2: compute the whole-file power series and render the plot
//
// Outputs only appear once complete; a failed pass leaves no partial files.
func ProcessAudio(inputPath string, cfg *FilterConfig, log zerolog.Logger, progress ProgressFunc) (*ProcessingResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	passID := uuid.NewString()
	log = log.With().Str("pass_id", passID).Str("input", inputPath).Logger()

	outputPath := FilteredPath(inputPath, cfg)
	result := &ProcessingResult{
		PassID:     passID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Config:     cfg,
	}

	log.Info().
		Float64("threshold", cfg.Threshold).
		Int("radius", cfg.DilationRadius).
		Int("workers", cfg.Workers).
		Msg("filter pass starting")

	start := time.Now()
	stats, meta, err := filterFile(inputPath, outputPath, cfg, progress)
	if err != nil {
		log.Error().Err(err).Msg("filter pass failed")
		return nil, err
	}
	result.FilterTime = time.Since(start)
	result.Filter = stats
	result.SampleRate = meta.SampleRate
	result.BitDepth = meta.BitDepth
	result.InputDuration = float64(stats.SamplesIn) / float64(meta.SampleRate)
	result.OutputDuration = float64(stats.SamplesOut) / float64(meta.SampleRate)

	log.Info().
		Str("output", outputPath).
		Int("chunks", stats.Chunks).
		Int("frames_flagged", stats.FramesFlagged).
		Int("frames_retained", stats.FramesRetained).
		Int64("samples_in", stats.SamplesIn).
		Int64("samples_out", stats.SamplesOut).
		Dur("elapsed", result.FilterTime).
		Msg("filtered audio written")

	if cfg.CompressedFormat != FormatNone {
		enc, err := encoder.New(cfg.CompressedFormat)
		if err != nil {
			return nil, stageError(StageEncoding, outputPath, fmt.Errorf("%w: %v", ErrConfig, err))
		}
		compressedPath := CompressedPath(outputPath, enc.Extension())

		start = time.Now()
		if err := enc.Encode(outputPath, compressedPath); err != nil {
			log.Error().Err(err).Str("format", cfg.CompressedFormat).Msg("compressed copy failed")
			return nil, stageError(StageEncoding, compressedPath, err)
		}
		result.EncodeTime = time.Since(start)
		result.CompressedPath = compressedPath
		log.Info().Str("output", compressedPath).Dur("elapsed", result.EncodeTime).Msg("compressed copy written")
	}

	if cfg.PlotEnabled {
		start = time.Now()
		summary, plotPath, err := RenderSpectrogram(inputPath, cfg, progress)
		if err != nil {
			log.Error().Err(err).Msg("spectrogram pass failed")
			return nil, err
		}
		result.SpectrogramTime = time.Since(start)
		result.Spectrogram = summary
		result.PlotPath = plotPath
		log.Info().
			Str("output", plotPath).
			Int("frames", summary.Frames).
			Float64("peak_power", summary.PeakPower).
			Dur("elapsed", result.SpectrogramTime).
			Msg("power plot written")
	}

	return result, nil
}

// filterFile runs the filter pass from inputPath into outputPath
func filterFile(inputPath, outputPath string, cfg *FilterConfig, progress ProgressFunc) (*PassStats, *audio.Metadata, error) {
	if progress != nil {
		progress(PassFilter, "Filtering", 0.0, nil)
	}

	stream, meta, err := audio.OpenStream(inputPath, audio.StreamOptions{
		ChunkDuration:      cfg.ChunkDuration,
		Align:              cfg.HopLength,
		ExpectedSampleRate: cfg.SampleRate,
	})
	if err != nil {
		return nil, nil, stageError(StageAnalysis, inputPath, err)
	}
	defer stream.Close()

	writer, err := audio.CreateWriter(outputPath, meta.SampleRate, meta.BitDepth)
	if err != nil {
		return nil, nil, stageError(StageWriting, outputPath, err)
	}

	stats, err := FilterStream(stream, cfg, writer, func(s *PassStats) {
		if progress != nil && meta.TotalSamples > 0 {
			progress(PassFilter, "Filtering", min(float64(s.SamplesIn)/float64(meta.TotalSamples), 1.0), s)
		}
	})
	if err != nil {
		writer.Abort()
		var se *StageError
		if errors.As(err, &se) && se.Path == "" {
			se.Path = inputPath
			if se.Stage == StageWriting {
				se.Path = outputPath
			}
		}
		return nil, nil, err
	}

	if err := writer.Commit(); err != nil {
		return nil, nil, stageError(StageWriting, outputPath, err)
	}

	if progress != nil {
		progress(PassFilter, "Filtering", 1.0, stats)
	}
	return stats, meta, nil
}

// chunkResult is the analysis outcome for one chunk
type chunkResult struct {
	chunk    *audio.Chunk
	retained []int
	frames   int
	flagged  int
	peak     float64
}

type chunkJob struct {
	chunk *audio.Chunk
	out   chan<- chunkResult
}

// FilterStream analyses every chunk of src and writes the retained samples to
// sink in chunk order. Analysis runs on cfg.Workers goroutines, each with its
// own SpectralAnalyzer; at most Workers+2 chunks are held at once.
//
// onChunk, when non-nil, is called after each chunk is assembled.
// Failures are returned as *StageError without a path.
func FilterStream(src ChunkSource, cfg *FilterConfig, sink SampleSink, onChunk func(*PassStats)) (*PassStats, error) {
	workers := max(cfg.Workers, 1)

	jobs := make(chan chunkJob)
	// Result slots in chunk order; its capacity bounds the chunks in flight
	pending := make(chan chan chunkResult, workers)
	done := make(chan struct{})
	readErr := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analyzer := NewSpectralAnalyzer(cfg.WindowLength, cfg.HopLength)
			for job := range jobs {
				job.out <- analyseChunk(analyzer, job.chunk, cfg)
			}
		}()
	}

	go func() {
		defer close(pending)
		defer close(jobs)
		for {
			chunk, err := src.NextChunk()
			if err != nil {
				readErr <- err
				return
			}
			if chunk == nil {
				return
			}

			out := make(chan chunkResult, 1)
			select {
			case pending <- out:
			case <-done:
				return
			}
			select {
			case jobs <- chunkJob{chunk: chunk, out: out}:
			case <-done:
				return
			}
		}
	}()

	assembler := NewAssembler(cfg.HopLength, sink)
	stats := &PassStats{}
	var failure error

	for out := range pending {
		res := <-out

		if _, err := assembler.Assemble(res.chunk, res.retained); err != nil {
			failure = &StageError{Stage: StageWriting, Err: err}
			break
		}

		stats.Chunks = assembler.ChunksAssembled
		stats.FramesAnalysed += res.frames
		stats.FramesFlagged += res.flagged
		stats.FramesRetained = assembler.FramesRetained
		stats.Segments = assembler.Segments
		stats.SamplesIn = assembler.SamplesIn
		stats.SamplesOut = assembler.SamplesOut
		stats.PeakPower = max(stats.PeakPower, res.peak)

		if onChunk != nil {
			onChunk(stats)
		}
	}

	if failure != nil {
		close(done)
		for range pending {
		}
	}
	wg.Wait()

	if failure != nil {
		return nil, failure
	}
	select {
	case err := <-readErr:
		return nil, &StageError{Stage: StageAnalysis, Err: err}
	default:
	}
	return stats, nil
}

// analyseChunk runs power analysis, detection and dilation on one chunk
func analyseChunk(analyzer *SpectralAnalyzer, chunk *audio.Chunk, cfg *FilterConfig) chunkResult {
	power := analyzer.MeanPower(chunk.Samples)
	mask := DetectEvents(power, cfg.Threshold)

	peak := 0.0
	for _, p := range power {
		peak = max(peak, p)
	}

	return chunkResult{
		chunk:    chunk,
		retained: Dilate(mask, cfg.DilationRadius),
		frames:   len(power),
		flagged:  CountFlagged(mask),
		peak:     peak,
	}
}

// RenderSpectrogram computes the whole-file power series of inputPath and
// renders it to the plot path derived from cfg
func RenderSpectrogram(inputPath string, cfg *FilterConfig, progress ProgressFunc) (*SpectrogramSummary, string, error) {
	series, meta, err := ComputeSpectrogram(inputPath, cfg, progress)
	if err != nil {
		return nil, "", err
	}

	plotPath := PlotPath(inputPath, cfg)
	if err := chart.RenderPowerSeries(series, plotPath, PlotTitle); err != nil {
		return nil, "", stageError(StageRendering, plotPath, err)
	}

	summary := Summarise(series, cfg.Threshold)
	summary.Source = meta
	return summary, plotPath, nil
}
