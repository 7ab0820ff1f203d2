package processor

import (
	"github.com/linuxmatters/squelch/internal/audio"
)

// PlotTitle is the heading of the rendered power plot
const PlotTitle = "Mean Power Spectrum (Streamed Processing)"

// SpectrogramSummary condenses a power series for logs and reports
type SpectrogramSummary struct {
	Frames      int
	PeakPower   float64
	PeakFrame   int
	MeanPower   float64
	FramesAbove int // frames at or above the detection threshold

	Source *audio.Metadata // set by RenderSpectrogram
}

// ComputeSpectrogram streams the whole file in overlapping blocks and returns
// the mean power of every analysis frame, indexed globally from the start of
// the file. A file shorter than one window yields an empty series.
//
// Blocks overlap by WindowLength-HopLength samples and start on multiples of
// HopLength, so no frame is lost or repeated at block borders.
func ComputeSpectrogram(inputPath string, cfg *FilterConfig, progress ProgressFunc) ([]float64, *audio.Metadata, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if progress != nil {
		progress(PassSpectrogram, "Spectrogram", 0.0, nil)
	}

	stream, meta, err := audio.OpenStream(inputPath, audio.StreamOptions{
		ChunkDuration:      cfg.SpectrogramChunkDuration,
		Align:              cfg.HopLength,
		Overlap:            cfg.WindowLength - cfg.HopLength,
		ExpectedSampleRate: cfg.SampleRate,
	})
	if err != nil {
		return nil, nil, stageError(StageAnalysis, inputPath, err)
	}
	defer stream.Close()

	analyzer := NewSpectralAnalyzer(cfg.WindowLength, cfg.HopLength)
	stats := &PassStats{}

	var series []float64
	if meta.TotalSamples > 0 {
		series = make([]float64, 0, FrameCount(int(meta.TotalSamples), cfg.WindowLength, cfg.HopLength))
	}

	for {
		chunk, err := stream.NextChunk()
		if err != nil {
			return nil, nil, stageError(StageAnalysis, inputPath, err)
		}
		if chunk == nil {
			break
		}

		power := analyzer.MeanPower(chunk.Samples)
		series = append(series, power...)

		stats.Chunks++
		stats.FramesAnalysed += len(power)
		stats.SamplesIn = chunk.Offset + int64(len(chunk.Samples))
		for _, p := range power {
			stats.PeakPower = max(stats.PeakPower, p)
		}

		if progress != nil && meta.TotalSamples > 0 {
			progress(PassSpectrogram, "Spectrogram", min(float64(stats.SamplesIn)/float64(meta.TotalSamples), 1.0), stats)
		}
	}

	if progress != nil {
		progress(PassSpectrogram, "Spectrogram", 1.0, stats)
	}
	return series, meta, nil
}

// Summarise reduces a power series to its headline figures
func Summarise(series []float64, threshold float64) *SpectrogramSummary {
	s := &SpectrogramSummary{Frames: len(series)}
	if len(series) == 0 {
		return s
	}

	var sum float64
	for i, p := range series {
		sum += p
		if p > s.PeakPower {
			s.PeakPower = p
			s.PeakFrame = i
		}
		if p >= threshold {
			s.FramesAbove++
		}
	}
	s.MeanPower = sum / float64(len(series))
	return s
}
