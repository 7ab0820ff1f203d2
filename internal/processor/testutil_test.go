package processor

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/linuxmatters/squelch/internal/audio"
)

// Burst is a span of tone within otherwise quiet test audio
type Burst struct {
	Start    float64 // seconds
	Duration float64 // seconds
}

// TestAudioOptions configures the synthetic capture to generate
type TestAudioOptions struct {
	DurationSecs float64 // Total duration in seconds
	SampleRate   int     // Sample rate (default: 12500)
	ToneFreq     float64 // Sine wave frequency in Hz (default: 1000)
	ToneAmp      float64 // Linear tone amplitude, 1.0 = full scale
	NoiseLevel   float64 // White noise level in dBFS (0 = no noise, -60 = quiet noise)
	Bursts       []Burst // When set the tone only sounds inside these spans
}

// synthesise returns the normalised samples described by opts
func synthesise(opts TestAudioOptions) []float32 {
	if opts.SampleRate == 0 {
		opts.SampleRate = 12500
	}
	if opts.ToneFreq == 0 {
		opts.ToneFreq = 1000
	}

	totalSamples := int(opts.DurationSecs * float64(opts.SampleRate))
	samples := make([]float32, totalSamples)

	noiseAmp := 0.0
	if opts.NoiseLevel < 0 {
		noiseAmp = math.Pow(10.0, opts.NoiseLevel/20.0)
	}

	toneOn := func(i int) bool {
		if len(opts.Bursts) == 0 {
			return true
		}
		t := float64(i) / float64(opts.SampleRate)
		for _, b := range opts.Bursts {
			if t >= b.Start && t < b.Start+b.Duration {
				return true
			}
		}
		return false
	}

	// Simple LCG random number generator for deterministic noise
	rngState := uint32(12345)
	nextRandom := func() float64 {
		rngState = rngState*1664525 + 1013904223
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}

	for i := range samples {
		var sample float64
		if opts.ToneAmp > 0 && toneOn(i) {
			t := float64(i) / float64(opts.SampleRate)
			sample += opts.ToneAmp * math.Sin(2.0*math.Pi*opts.ToneFreq*t)
		}
		if noiseAmp > 0 {
			sample += noiseAmp * nextRandom()
		}
		samples[i] = float32(max(min(sample, 1.0), -1.0))
	}
	return samples
}

// generateTestAudio writes a synthetic 16-bit mono capture into a fresh
// temporary directory and returns its path
func generateTestAudio(t *testing.T, opts TestAudioOptions) string {
	t.Helper()

	if opts.SampleRate == 0 {
		opts.SampleRate = 12500
	}
	samples := synthesise(opts)

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(max(min(math.Round(float64(s)*32768), math.MaxInt16), math.MinInt16))
	}

	path := filepath.Join(t.TempDir(), "20240101_060000_sound.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test capture: %v", err)
	}
	if err := writeWAV(f, pcm, opts.SampleRate); err != nil {
		f.Close()
		t.Fatalf("failed to write WAV file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close test capture: %v", err)
	}
	return path
}

// writeWAV writes a mono 16-bit WAV file
func writeWAV(f *os.File, samples []int16, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(samples) * 2
	fileSize := 36 + dataSize

	header := []any{
		[]byte("RIFF"), uint32(fileSize), []byte("WAVE"),
		[]byte("fmt "), uint32(16), uint16(1), uint16(numChannels),
		uint32(sampleRate), uint32(byteRate), uint16(blockAlign), uint16(bitsPerSample),
		[]byte("data"), uint32(dataSize),
	}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return binary.Write(f, binary.LittleEndian, samples)
}

// readSamples decodes a whole mono WAV file
func readSamples(t *testing.T, path string) ([]float32, *audio.Metadata) {
	t.Helper()
	stream, meta, err := audio.OpenStream(path, audio.StreamOptions{ChunkSamples: 1 << 20})
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer stream.Close()

	var out []float32
	for {
		chunk, err := stream.NextChunk()
		if err != nil {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		if chunk == nil {
			return out, meta
		}
		out = append(out, chunk.Samples...)
	}
}

// sliceSource serves in-memory samples as fixed-size chunks
type sliceSource struct {
	samples    []float32
	chunkSize  int
	sampleRate int
	next       int
	index      int
	failAt     int // chunk index that fails, or -1
	err        error
}

func newSliceSource(samples []float32, chunkSize int) *sliceSource {
	return &sliceSource{samples: samples, chunkSize: chunkSize, sampleRate: 12500, failAt: -1}
}

func (s *sliceSource) NextChunk() (*audio.Chunk, error) {
	if s.index == s.failAt {
		return nil, s.err
	}
	if s.next >= len(s.samples) {
		return nil, nil
	}
	end := min(s.next+s.chunkSize, len(s.samples))
	chunk := &audio.Chunk{
		Index:      s.index,
		Offset:     int64(s.next),
		SampleRate: s.sampleRate,
		Samples:    s.samples[s.next:end],
	}
	s.next = end
	s.index++
	return chunk, nil
}

// testConfig returns the default configuration without side artifacts
func testConfig() *FilterConfig {
	cfg := DefaultFilterConfig()
	cfg.CompressedFormat = FormatNone
	cfg.PlotEnabled = false
	return cfg
}
