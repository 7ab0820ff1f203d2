// Package encoder produces compressed copies of finished WAV files
package encoder

import (
	"fmt"
	"io"
	"os"

	"github.com/linuxmatters/squelch/internal/audio"
)

// readChunkSamples is the read stride used when streaming the source WAV
const readChunkSamples = 1 << 16

// Encoder converts a finished, closed WAV file into a compressed container.
// The output appears at outPath only once it is complete.
type Encoder interface {
	Extension() string
	Encode(wavPath, outPath string) error
}

// New returns the encoder for a compressed format name ("mp3" or "flac")
func New(format string) (Encoder, error) {
	switch format {
	case "mp3":
		return &MP3Encoder{}, nil
	case "flac":
		return &FLACEncoder{BlockSize: DefaultFLACBlockSize}, nil
	default:
		return nil, fmt.Errorf("unsupported compressed format %q", format)
	}
}

// streamWAV calls onOpen with the file's metadata, then feeds every sample of
// the mono WAV file to fn in file order
func streamWAV(wavPath string, onOpen func(meta *audio.Metadata) error, fn func(samples []float32) error) (*audio.Metadata, error) {
	stream, meta, err := audio.OpenStream(wavPath, audio.StreamOptions{ChunkSamples: readChunkSamples})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := onOpen(meta); err != nil {
		return meta, err
	}

	for {
		chunk, err := stream.NextChunk()
		if err != nil {
			return meta, err
		}
		if chunk == nil {
			return meta, nil
		}
		if err := fn(chunk.Samples); err != nil {
			return meta, err
		}
	}
}

// errWriter remembers the first write error so encoders whose Write method
// does not report failures can still be checked
type errWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.n += int64(n)
	if err != nil {
		e.err = err
	}
	return n, err
}

// removeTemp discards an abandoned temporary output
func removeTemp(f *os.File) {
	os.Remove(f.Name())
}
