package processor

import (
	"fmt"

	"github.com/linuxmatters/squelch/internal/audio"
)

// SampleRange is a half-open [Start, End) span of sample offsets within a chunk
type SampleRange struct {
	Start int
	End   int
}

// Len returns the number of samples in the range
func (r SampleRange) Len() int {
	return r.End - r.Start
}

// RetainedRanges maps ascending, unique frame indices to the sample ranges they
// keep: frame idx keeps [idx*hop, min((idx+1)*hop, chunkLength)). Consecutive
// frames produce touching ranges, which are merged.
func RetainedRanges(retained []int, hopLength, chunkLength int) []SampleRange {
	var ranges []SampleRange
	for _, idx := range retained {
		start := idx * hopLength
		if idx < 0 || start >= chunkLength {
			continue
		}
		end := min((idx+1)*hopLength, chunkLength)

		if last := len(ranges) - 1; last >= 0 && ranges[last].End == start {
			ranges[last].End = end
			continue
		}
		ranges = append(ranges, SampleRange{Start: start, End: end})
	}
	return ranges
}

// SampleSink receives retained samples in output order
type SampleSink interface {
	WriteSamples(samples []float32) error
}

// FilteredAudio is an in-memory SampleSink: an append-only list of sample
// arrays in the order they were written
type FilteredAudio struct {
	segments [][]float32
	total    int
}

// WriteSamples appends a copy of samples
func (f *FilteredAudio) WriteSamples(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	f.segments = append(f.segments, append([]float32(nil), samples...))
	f.total += len(samples)
	return nil
}

// Len returns the total number of samples held
func (f *FilteredAudio) Len() int {
	return f.total
}

// Samples returns all segments concatenated into one waveform
func (f *FilteredAudio) Samples() []float32 {
	out := make([]float32, 0, f.total)
	for _, s := range f.segments {
		out = append(out, s...)
	}
	return out
}

// Assembler copies the retained parts of each chunk into its sink, enforcing
// chunk order. It owns the sink for the duration of a pass.
type Assembler struct {
	hopLength int
	sink      SampleSink
	lastIndex int

	ChunksAssembled int
	SamplesIn       int64
	SamplesOut      int64
	FramesRetained  int
	Segments        int // merged retained ranges written
}

// NewAssembler creates an assembler writing to sink
func NewAssembler(hopLength int, sink SampleSink) *Assembler {
	return &Assembler{
		hopLength: hopLength,
		sink:      sink,
		lastIndex: -1,
	}
}

// Assemble appends the samples kept by retained frame indices of chunk.
// Chunks must arrive in strictly increasing index order.
func (a *Assembler) Assemble(chunk *audio.Chunk, retained []int) (int, error) {
	if chunk.Index <= a.lastIndex {
		return 0, fmt.Errorf("chunk %d arrived after chunk %d", chunk.Index, a.lastIndex)
	}
	a.lastIndex = chunk.Index

	written := 0
	for _, r := range RetainedRanges(retained, a.hopLength, len(chunk.Samples)) {
		if err := a.sink.WriteSamples(chunk.Samples[r.Start:r.End]); err != nil {
			return written, err
		}
		written += r.Len()
		a.Segments++
	}

	a.ChunksAssembled++
	a.SamplesIn += int64(len(chunk.Samples))
	a.SamplesOut += int64(written)
	a.FramesRetained += len(retained)
	return written, nil
}
