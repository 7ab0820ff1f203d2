package processor

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/linuxmatters/squelch/internal/audio"
	"github.com/rs/zerolog"
)

// runFilterStream guards against a pipeline that never returns
func runFilterStream(t *testing.T, src ChunkSource, cfg *FilterConfig, sink SampleSink) (*PassStats, error) {
	t.Helper()
	type outcome struct {
		stats *PassStats
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		stats, err := FilterStream(src, cfg, sink, nil)
		done <- outcome{stats, err}
	}()
	select {
	case o := <-done:
		return o.stats, o.err
	case <-time.After(30 * time.Second):
		t.Fatal("FilterStream did not return")
		return nil, nil
	}
}

func TestFilterStreamToneBurst(t *testing.T) {
	// 20 s of silence with a 2 s tone at t=10 s, dilation of one frame
	src := synthesise(TestAudioOptions{DurationSecs: 20, ToneAmp: 0.9, Bursts: []Burst{{Start: 10, Duration: 2}}})
	cfg := testConfig()
	cfg.DilationRadius = 1

	sink := &FilteredAudio{}
	stats, err := runFilterStream(t, newSliceSource(src, len(src)), cfg, sink)
	if err != nil {
		t.Fatalf("FilterStream() error: %v", err)
	}

	if stats.Chunks != 1 || stats.FramesAnalysed != 485 {
		t.Errorf("chunks = %d, frames = %d, want 1 and 485", stats.Chunks, stats.FramesAnalysed)
	}
	if stats.Segments != 1 {
		t.Fatalf("segments = %d, want one contiguous region", stats.Segments)
	}
	if stats.SamplesOut != int64(stats.FramesRetained*512) {
		t.Errorf("samples out = %d, want %d frames of 512", stats.SamplesOut, stats.FramesRetained)
	}

	out := sink.Samples()
	start := -1
	for s := 0; s+len(out) <= len(src); s += 512 {
		if reflect.DeepEqual(src[s:s+len(out)], out) {
			start = s
			break
		}
	}
	if start < 0 {
		t.Fatal("retained audio is not a contiguous slice of the input")
	}
	end := start + len(out)

	// Frames are left-aligned, so the first flagged frame is the one whose
	// window first reaches the tone at sample 125000 and the kept region
	// opens three hops early; it closes one frame past the last flagged one
	if start != 241*512 || end != 293*512 {
		t.Errorf("retained region = [%d, %d), want [%d, %d)", start, end, 241*512, 293*512)
	}
}

func TestFilterStreamWorkersMatchSequential(t *testing.T) {
	src := synthesise(TestAudioOptions{
		DurationSecs: 60,
		ToneAmp:      0.5,
		NoiseLevel:   -40,
		Bursts:       []Burst{{1, 1.5}, {9.8, 0.3}, {19.6, 2}, {33, 0.2}, {41, 5}, {58.5, 1.5}},
	})
	chunkSize := 48 * 512

	run := func(workers int) (*PassStats, []float32) {
		cfg := testConfig()
		cfg.Workers = workers
		sink := &FilteredAudio{}
		stats, err := runFilterStream(t, newSliceSource(src, chunkSize), cfg, sink)
		if err != nil {
			t.Fatalf("FilterStream(workers=%d) error: %v", workers, err)
		}
		return stats, sink.Samples()
	}

	wantStats, wantOut := run(1)
	if wantStats.Chunks != (len(src)+chunkSize-1)/chunkSize {
		t.Fatalf("sequential run assembled %d chunks", wantStats.Chunks)
	}
	if wantStats.SamplesOut == 0 || wantStats.SamplesOut >= wantStats.SamplesIn {
		t.Fatalf("sequential run kept %d of %d samples", wantStats.SamplesOut, wantStats.SamplesIn)
	}

	for _, workers := range []int{2, 4, 7} {
		stats, out := run(workers)
		if !reflect.DeepEqual(stats, wantStats) {
			t.Errorf("workers=%d stats = %+v, want %+v", workers, stats, wantStats)
		}
		if !reflect.DeepEqual(out, wantOut) {
			t.Errorf("workers=%d output differs from sequential run", workers)
		}
	}
}

func TestFilterStreamSinkFailure(t *testing.T) {
	src := synthesise(TestAudioOptions{DurationSecs: 30, ToneAmp: 0.5})
	boom := errors.New("disk full")

	for _, workers := range []int{1, 4} {
		cfg := testConfig()
		cfg.Workers = workers

		_, err := runFilterStream(t, newSliceSource(src, 4*512), cfg, &failingSink{after: 2, err: boom})

		var se *StageError
		if !errors.As(err, &se) || se.Stage != StageWriting {
			t.Fatalf("workers=%d error = %v, want a writing StageError", workers, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("workers=%d error = %v, want it to wrap %v", workers, err, boom)
		}
	}
}

func TestFilterStreamSourceFailure(t *testing.T) {
	src := synthesise(TestAudioOptions{DurationSecs: 10, NoiseLevel: -30})
	for _, workers := range []int{1, 3} {
		source := newSliceSource(src, 8*512)
		source.failAt = 3
		source.err = audio.ErrFormat

		cfg := testConfig()
		cfg.Workers = workers
		_, err := runFilterStream(t, source, cfg, &FilteredAudio{})

		var se *StageError
		if !errors.As(err, &se) || se.Stage != StageAnalysis {
			t.Fatalf("workers=%d error = %v, want an analysis StageError", workers, err)
		}
		if !errors.Is(err, audio.ErrFormat) {
			t.Errorf("workers=%d error = %v, want ErrFormat", workers, err)
		}
	}
}

func TestFilterStreamProgress(t *testing.T) {
	src := synthesise(TestAudioOptions{DurationSecs: 10, NoiseLevel: -30})
	var seen []int64
	_, err := FilterStream(newSliceSource(src, 40*512), testConfig(), &FilteredAudio{}, func(s *PassStats) {
		seen = append(seen, s.SamplesIn)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 7 || seen[len(seen)-1] != int64(len(src)) {
		t.Errorf("progress samples = %v", seen)
	}
}

func TestProcessAudioBursts(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 30,
		ToneAmp:      0.5,
		NoiseLevel:   -50,
		Bursts:       []Burst{{Start: 5, Duration: 2}, {Start: 20, Duration: 1}},
	})

	result, err := ProcessAudio(input, testConfig(), zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("ProcessAudio() error: %v", err)
	}

	wantOutput := filepath.Join(filepath.Dir(input), "20240101_060000_filtered.wav")
	if result.OutputPath != wantOutput {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, wantOutput)
	}
	if result.PassID == "" {
		t.Error("missing pass ID")
	}
	if result.SampleRate != 12500 || result.BitDepth != 16 {
		t.Errorf("format = %d Hz %d-bit", result.SampleRate, result.BitDepth)
	}
	if result.Filter.Segments != 2 {
		t.Errorf("segments = %d, want 2", result.Filter.Segments)
	}
	if !(result.OutputDuration > 3 && result.OutputDuration < result.InputDuration) {
		t.Errorf("kept %.2fs of %.2fs", result.OutputDuration, result.InputDuration)
	}
	if math.Abs(result.InputDuration-30) > 1e-9 {
		t.Errorf("InputDuration = %v, want 30", result.InputDuration)
	}
	if result.CompressedPath != "" || result.PlotPath != "" {
		t.Errorf("unexpected artifacts %q %q", result.CompressedPath, result.PlotPath)
	}

	out, meta := readSamples(t, result.OutputPath)
	if int64(len(out)) != result.Filter.SamplesOut || meta.SampleRate != 12500 || meta.BitDepth != 16 {
		t.Errorf("output holds %d samples at %d Hz %d-bit, want %d", len(out), meta.SampleRate, meta.BitDepth, result.Filter.SamplesOut)
	}

	entries, _ := os.ReadDir(filepath.Dir(input))
	if len(entries) != 2 {
		t.Errorf("expected input and output only, found %d entries", len(entries))
	}
}

func TestProcessAudioDeterministic(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 20,
		ToneAmp:      0.4,
		NoiseLevel:   -45,
		Bursts:       []Burst{{2, 1}, {9.5, 1}, {15, 3}},
	})

	run := func(workers int) []byte {
		cfg := testConfig()
		cfg.ChunkDuration = 4
		cfg.Workers = workers
		result, err := ProcessAudio(input, cfg, zerolog.Nop(), nil)
		if err != nil {
			t.Fatalf("ProcessAudio(workers=%d) error: %v", workers, err)
		}
		if result.Filter.Chunks != 6 {
			t.Errorf("workers=%d assembled %d chunks, want 6", workers, result.Filter.Chunks)
		}
		data, err := os.ReadFile(result.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	first := run(1)
	if !bytes.Equal(run(1), first) {
		t.Error("repeated run produced different output")
	}
	if !bytes.Equal(run(4), first) {
		t.Error("parallel run produced different output")
	}
}

func TestProcessAudioEdgeInputs(t *testing.T) {
	tests := []struct {
		name       string
		opts       TestAudioOptions
		wantFrames int
	}{
		{"header_only", TestAudioOptions{DurationSecs: 0}, 0},
		{"shorter_than_window", TestAudioOptions{DurationSecs: 0.08, ToneAmp: 0.9}, 0},
		{"silence", TestAudioOptions{DurationSecs: 5}, FrameCount(62500, 2048, 512)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := generateTestAudio(t, tt.opts)

			result, err := ProcessAudio(input, testConfig(), zerolog.Nop(), nil)
			if err != nil {
				t.Fatalf("ProcessAudio() error: %v", err)
			}
			if result.Filter.FramesAnalysed != tt.wantFrames {
				t.Errorf("frames analysed = %d, want %d", result.Filter.FramesAnalysed, tt.wantFrames)
			}
			if result.Filter.SamplesOut != 0 || result.OutputDuration != 0 {
				t.Errorf("kept %d samples, want none", result.Filter.SamplesOut)
			}

			out, meta := readSamples(t, result.OutputPath)
			if len(out) != 0 || meta.TotalSamples != 0 {
				t.Errorf("output holds %d samples, want a header-only WAV", len(out))
			}
		})
	}
}

func TestProcessAudioEmptyCaptureCompressed(t *testing.T) {
	tests := []struct {
		format string
		magic  []byte
	}{
		{FormatMP3, []byte{0xFF}},
		{FormatFLAC, []byte("fLaC")},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			input := generateTestAudio(t, TestAudioOptions{DurationSecs: 0})
			cfg := testConfig()
			cfg.CompressedFormat = tt.format

			result, err := ProcessAudio(input, cfg, zerolog.Nop(), nil)
			if err != nil {
				t.Fatalf("ProcessAudio() error: %v", err)
			}
			if result.CompressedPath == "" {
				t.Fatal("no compressed copy written")
			}
			assertPrefix(t, result.CompressedPath, tt.magic)
		})
	}
}

func TestProcessAudioThresholdExtremes(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{DurationSecs: 10, NoiseLevel: -30})
	frames := FrameCount(125000, 2048, 512)

	tests := []struct {
		name      string
		threshold float64
		wantOut   int64
	}{
		// Every frame kept: one hop per frame, the tail past the last hop is dropped
		{"everything_above", 1e-9, int64(frames * 512)},
		{"nothing_above", 1e9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Threshold = tt.threshold

			result, err := ProcessAudio(input, cfg, zerolog.Nop(), nil)
			if err != nil {
				t.Fatal(err)
			}
			if result.Filter.SamplesOut != tt.wantOut {
				t.Errorf("samples out = %d, want %d", result.Filter.SamplesOut, tt.wantOut)
			}
			if result.Filter.SamplesOut > result.Filter.SamplesIn {
				t.Errorf("output longer than input: %d > %d", result.Filter.SamplesOut, result.Filter.SamplesIn)
			}
		})
	}
}

func TestProcessAudioRadiusZero(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 10,
		ToneAmp:      0.5,
		Bursts:       []Burst{{Start: 3, Duration: 1}},
	})
	cfg := testConfig()
	cfg.DilationRadius = 0

	result, err := ProcessAudio(input, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := result.Filter
	if s.FramesFlagged == 0 || s.FramesRetained != s.FramesFlagged {
		t.Errorf("flagged %d, retained %d, want equal and non-zero", s.FramesFlagged, s.FramesRetained)
	}
	if s.SamplesOut != int64(s.FramesFlagged*512) {
		t.Errorf("samples out = %d, want %d", s.SamplesOut, s.FramesFlagged*512)
	}
}

func TestProcessAudioErrors(t *testing.T) {
	wrongRate := generateTestAudio(t, TestAudioOptions{DurationSecs: 1, SampleRate: 8000})
	missing := filepath.Join(t.TempDir(), "missing_sound.wav")

	badConfig := testConfig()
	badConfig.Threshold = 0

	tests := []struct {
		name      string
		input     string
		cfg       *FilterConfig
		wantErr   error
		wantStage Stage
	}{
		{"missing_input", missing, testConfig(), audio.ErrIO, StageAnalysis},
		{"wrong_sample_rate", wrongRate, testConfig(), audio.ErrFormat, StageAnalysis},
		{"bad_threshold", wrongRate, badConfig, ErrConfig, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProcessAudio(tt.input, tt.cfg, zerolog.Nop(), nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantStage == "" {
				return
			}
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a StageError", err)
			}
			if se.Stage != tt.wantStage || se.Path != tt.input {
				t.Errorf("stage = %s path = %s, want %s %s", se.Stage, se.Path, tt.wantStage, tt.input)
			}
			if _, statErr := os.Stat(FilteredPath(tt.input, tt.cfg)); !os.IsNotExist(statErr) {
				t.Error("failed pass left an output file behind")
			}
		})
	}
}

func TestProcessAudioArtifacts(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 8,
		ToneAmp:      0.5,
		NoiseLevel:   -50,
		Bursts:       []Burst{{Start: 4, Duration: 1}},
	})
	cfg := testConfig()
	cfg.CompressedFormat = FormatFLAC
	cfg.PlotEnabled = true

	var passes []int
	lastProgress := map[int]float64{}
	result, err := ProcessAudio(input, cfg, zerolog.Nop(), func(pass int, _ string, progress float64, _ *PassStats) {
		if progress < lastProgress[pass] {
			t.Errorf("pass %d progress went backwards: %v after %v", pass, progress, lastProgress[pass])
		}
		lastProgress[pass] = progress
		if len(passes) == 0 || passes[len(passes)-1] != pass {
			passes = append(passes, pass)
		}
	})
	if err != nil {
		t.Fatalf("ProcessAudio() error: %v", err)
	}

	if !reflect.DeepEqual(passes, []int{PassFilter, PassSpectrogram}) {
		t.Errorf("passes reported = %v", passes)
	}
	if lastProgress[PassFilter] != 1.0 || lastProgress[PassSpectrogram] != 1.0 {
		t.Errorf("final progress = %v", lastProgress)
	}

	dir := filepath.Dir(input)
	if want := filepath.Join(dir, "20240101_060000_filtered.flac"); result.CompressedPath != want {
		t.Errorf("CompressedPath = %q, want %q", result.CompressedPath, want)
	}
	if want := filepath.Join(dir, "20240101_060000_sound_power_spectrum.jpg"); result.PlotPath != want {
		t.Errorf("PlotPath = %q, want %q", result.PlotPath, want)
	}

	assertPrefix(t, result.CompressedPath, []byte("fLaC"))
	assertPrefix(t, result.PlotPath, []byte{0xFF, 0xD8})

	if result.Spectrogram.Frames != FrameCount(100000, 2048, 512) {
		t.Errorf("spectrogram frames = %d, want %d", result.Spectrogram.Frames, FrameCount(100000, 2048, 512))
	}
	if result.Spectrogram.FramesAbove != result.Filter.FramesFlagged {
		t.Errorf("frames above threshold %d differ from frames flagged %d", result.Spectrogram.FramesAbove, result.Filter.FramesFlagged)
	}
}

func assertPrefix(t *testing.T, path string, prefix []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, prefix) {
		t.Errorf("%s starts with % x, want % x", filepath.Base(path), data[:min(len(data), len(prefix))], prefix)
	}
}

func TestComputeSpectrogramMatchesSingleBlock(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 7.3,
		ToneAmp:      0.6,
		NoiseLevel:   -35,
		Bursts:       []Burst{{1, 0.7}, {4.1, 2}},
	})
	cfg := testConfig()
	cfg.SpectrogramChunkDuration = 0.5

	series, meta, err := ComputeSpectrogram(input, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	samples, _ := readSamples(t, input)
	want := NewSpectralAnalyzer(2048, 512).MeanPower(samples)

	if meta.TotalSamples != int64(len(samples)) {
		t.Errorf("metadata reports %d samples, decoded %d", meta.TotalSamples, len(samples))
	}
	if len(series) != len(want) {
		t.Fatalf("series length = %d, want %d", len(series), len(want))
	}
	for i := range want {
		if math.Abs(series[i]-want[i]) > 1e-9*math.Max(1, want[i]) {
			t.Fatalf("frame %d = %v, want %v", i, series[i], want[i])
		}
	}
}

func TestRenderSpectrogramSilent(t *testing.T) {
	const n = 37500
	input := generateTestAudio(t, TestAudioOptions{DurationSecs: 3})
	cfg := testConfig()

	summary, plotPath, err := RenderSpectrogram(input, cfg, nil)
	if err != nil {
		t.Fatalf("RenderSpectrogram() error: %v", err)
	}

	if want := (n-2048)/512 + 1; summary.Frames != want {
		t.Errorf("frames = %d, want %d", summary.Frames, want)
	}
	if summary.PeakPower != 0 || summary.MeanPower != 0 || summary.FramesAbove != 0 {
		t.Errorf("silent summary = %+v", summary)
	}
	if summary.Source == nil || summary.Source.TotalSamples != n || summary.Source.SampleRate != 12500 {
		t.Errorf("summary source = %+v", summary.Source)
	}
	assertPrefix(t, plotPath, []byte{0xFF, 0xD8})
}

func TestRenderSpectrogramShortFile(t *testing.T) {
	input := generateTestAudio(t, TestAudioOptions{DurationSecs: 0.1})

	summary, plotPath, err := RenderSpectrogram(input, testConfig(), nil)
	if err != nil {
		t.Fatalf("RenderSpectrogram() error: %v", err)
	}
	if summary.Frames != 0 {
		t.Errorf("frames = %d, want 0", summary.Frames)
	}
	assertPrefix(t, plotPath, []byte{0xFF, 0xD8})
}

func TestSummarise(t *testing.T) {
	s := Summarise([]float64{1, 20, 5, 13, 2}, 13)
	want := &SpectrogramSummary{Frames: 5, PeakPower: 20, PeakFrame: 1, MeanPower: 41.0 / 5, FramesAbove: 2}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("Summarise() = %+v, want %+v", s, want)
	}
	if empty := Summarise(nil, 13); empty.Frames != 0 || empty.PeakPower != 0 {
		t.Errorf("Summarise(nil) = %+v", empty)
	}
}

func TestStageError(t *testing.T) {
	err := stageError(StageWriting, "/lib/x_filtered.wav", audio.ErrIO)
	if got := err.Error(); got != "writing failed for /lib/x_filtered.wav: i/o error" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, audio.ErrIO) {
		t.Error("StageError should unwrap to its cause")
	}
	if stageError(StageWriting, "x", nil) != nil {
		t.Error("nil cause should give a nil error")
	}
}
