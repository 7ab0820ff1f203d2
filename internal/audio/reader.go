// Package audio provides chunked WAV reading and atomic WAV writing using go-audio
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Error classes reported by the reader and writer. Callers match them with errors.Is.
var (
	// ErrIO covers missing, unreadable and unwritable files
	ErrIO = errors.New("i/o error")
	// ErrFormat covers unexpected channel count, sample rate or encoding
	ErrFormat = errors.New("format error")
)

// wavFormatPCM is the RIFF audio format tag for integer PCM
const wavFormatPCM = 1

// readBlockSamples bounds a single decoder read so a chunk is filled in
// several small reads rather than one allocation the size of the chunk
const readBlockSamples = 64 * 1024

// Metadata contains audio file metadata
type Metadata struct {
	Duration     float64 // seconds, estimated from the data size
	SampleRate   int
	Channels     int
	BitDepth     int
	TotalSamples int64 // estimated from the data size
}

// Chunk is one contiguous block of decoded mono samples
type Chunk struct {
	Index      int       // strictly increasing within a stream
	Offset     int64     // position of Samples[0] in the file, in samples
	SampleRate int       // constant across the stream
	Samples    []float32 // normalised to [-1, 1)
}

// StreamOptions controls how a file is cut into chunks
type StreamOptions struct {
	// ChunkSamples is the stride between chunk starts. When zero it is
	// derived from ChunkDuration and the file's sample rate.
	ChunkSamples  int
	ChunkDuration float64 // seconds

	// Align rounds a duration-derived stride down to a multiple of Align
	Align int

	// Overlap repeats the last Overlap samples of a chunk at the start of the
	// next one. Chunk length is ChunkSamples+Overlap except at end of file.
	Overlap int

	// ExpectedSampleRate rejects files at any other rate when non-zero
	ExpectedSampleRate int
}

// Streamer reads a mono PCM WAV file as a finite sequence of chunks.
// It is not restartable and holds at most one chunk in memory.
type Streamer struct {
	file    *os.File
	decoder *wav.Decoder
	opts    StreamOptions
	meta    *Metadata
	path    string

	buf   *goaudio.IntBuffer
	scale float64

	carry     []float32 // overlap tail of the previous chunk
	nextIndex int
	nextStart int64
	eof       bool
}

// OpenStream opens a WAV file for chunked reading and validates its format
func OpenStream(path string, opts StreamOptions) (*Streamer, *Metadata, error) {
	if opts.ChunkSamples < 0 || (opts.ChunkSamples == 0 && opts.ChunkDuration <= 0) {
		return nil, nil, fmt.Errorf("chunk size must be positive, got %d samples / %gs", opts.ChunkSamples, opts.ChunkDuration)
	}
	if opts.Overlap < 0 {
		return nil, nil, fmt.Errorf("chunk overlap must not be negative, got %d samples", opts.Overlap)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to open input file: %v", ErrIO, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("%w: failed to stat input file: %v", ErrIO, err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, nil, fmt.Errorf("%w: not a valid WAV file: %s", ErrFormat, path)
	}

	if decoder.WavAudioFormat != wavFormatPCM {
		file.Close()
		return nil, nil, fmt.Errorf("%w: unsupported WAV encoding %d in %s (want integer PCM)", ErrFormat, decoder.WavAudioFormat, path)
	}
	if decoder.NumChans != 1 {
		file.Close()
		return nil, nil, fmt.Errorf("%w: expected mono audio, got %d channels in %s", ErrFormat, decoder.NumChans, path)
	}

	bitDepth := int(decoder.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		file.Close()
		return nil, nil, fmt.Errorf("%w: unsupported bit depth %d in %s", ErrFormat, bitDepth, path)
	}

	sampleRate := int(decoder.SampleRate)
	if sampleRate <= 0 {
		file.Close()
		return nil, nil, fmt.Errorf("%w: invalid sample rate %d in %s", ErrFormat, sampleRate, path)
	}
	if opts.ExpectedSampleRate > 0 && sampleRate != opts.ExpectedSampleRate {
		file.Close()
		return nil, nil, fmt.Errorf("%w: expected %d Hz, got %d Hz in %s", ErrFormat, opts.ExpectedSampleRate, sampleRate, path)
	}

	if opts.ChunkSamples == 0 {
		opts.ChunkSamples = chunkSamplesFor(opts.ChunkDuration, sampleRate, opts.Align)
	}

	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("%w: failed to locate PCM data in %s: %v", ErrFormat, path, err)
	}

	// 44 bytes is the canonical header; the estimate only drives progress reporting
	bytesPerSample := int64(bitDepth / 8)
	totalSamples := (info.Size() - 44) / bytesPerSample
	if totalSamples < 0 {
		totalSamples = 0
	}

	meta := &Metadata{
		Duration:     float64(totalSamples) / float64(sampleRate),
		SampleRate:   sampleRate,
		Channels:     1,
		BitDepth:     bitDepth,
		TotalSamples: totalSamples,
	}

	streamer := &Streamer{
		file:    file,
		decoder: decoder,
		opts:    opts,
		meta:    meta,
		path:    path,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, readBlockSamples),
			SourceBitDepth: bitDepth,
		},
		scale: fullScale(bitDepth),
	}

	return streamer, meta, nil
}

// Metadata returns the metadata read when the stream was opened
func (s *Streamer) Metadata() *Metadata {
	return s.meta
}

// NextChunk returns the next chunk of samples.
// Returns nil when end of file is reached.
func (s *Streamer) NextChunk() (*Chunk, error) {
	if s.eof && len(s.carry) == 0 {
		return nil, nil
	}

	want := s.opts.ChunkSamples + s.opts.Overlap
	samples := make([]float32, 0, want)
	samples = append(samples, s.carry...)
	carried := len(s.carry)
	s.carry = nil

	for !s.eof && len(samples) < want {
		need := want - len(samples)
		if need > len(s.buf.Data) {
			need = len(s.buf.Data)
		}
		s.buf.Data = s.buf.Data[:need]

		n, err := s.decoder.PCMBuffer(s.buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: failed to decode samples from %s: %v", ErrIO, s.path, err)
		}
		if n == 0 {
			s.eof = true
			break
		}
		for _, v := range s.buf.Data[:n] {
			samples = append(samples, float32(float64(v)/s.scale))
		}
		if errors.Is(err, io.EOF) {
			s.eof = true
		}
	}
	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]

	// Only the carried overlap is left: everything in it was already delivered
	if len(samples) == carried && carried > 0 && s.nextIndex > 0 {
		return nil, nil
	}
	if len(samples) == 0 {
		return nil, nil
	}

	if !s.eof && s.opts.Overlap > 0 && len(samples) > s.opts.Overlap {
		s.carry = append([]float32(nil), samples[len(samples)-s.opts.Overlap:]...)
	}

	chunk := &Chunk{
		Index:      s.nextIndex,
		Offset:     s.nextStart,
		SampleRate: s.meta.SampleRate,
		Samples:    samples,
	}
	s.nextIndex++
	s.nextStart += int64(s.opts.ChunkSamples)

	return chunk, nil
}

// Close releases the underlying file
func (s *Streamer) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// chunkSamplesFor converts a chunk duration to a sample stride of at least one sample
func chunkSamplesFor(duration float64, sampleRate, align int) int {
	n := int(duration * float64(sampleRate))
	if align > 0 {
		n -= n % align
		if n < align {
			n = align
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ChunkSamples returns the stride between chunk starts
func (s *Streamer) ChunkSamples() int {
	return s.opts.ChunkSamples
}

// fullScale returns the magnitude that maps integer PCM at bitDepth onto [-1, 1)
func fullScale(bitDepth int) float64 {
	return float64(int64(1) << uint(bitDepth-1))
}
