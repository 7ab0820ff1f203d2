package encoder

import (
	"bufio"
	"fmt"
	"math"

	"github.com/braheezy/shine-mp3/pkg/mp3"
	"github.com/linuxmatters/squelch/internal/audio"
)

// mp3FrameSamples is one MPEG-1 Layer III frame; it is also a whole number of
// MPEG-2/2.5 frames, so buffering multiples of it is safe at every rate
const mp3FrameSamples = 1152

// mp3SampleRates lists the rates shine can encode (MPEG-1, MPEG-2, MPEG-2.5)
var mp3SampleRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000}

// MP3Encoder writes a mono MP3 copy using shine-mp3. Captures at rates MP3
// cannot carry (12.5 kHz) are linearly resampled to the nearest legal rate.
type MP3Encoder struct{}

// Extension returns the file extension of encoded output
func (e *MP3Encoder) Extension() string {
	return ".mp3"
}

// Encode streams wavPath into an MP3 file at outPath
func (e *MP3Encoder) Encode(wavPath, outPath string) error {
	tmp, err := audio.CreateTemp(outPath)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		tmp.Close()
		removeTemp(tmp)
		return err
	}

	bw := bufio.NewWriter(tmp)
	out := &errWriter{w: bw}

	var (
		enc       *mp3.Encoder
		resampler *linearResampler
		pending   []int16
		scratch   []float32
		pass      int
	)

	_, err = streamWAV(wavPath, func(meta *audio.Metadata) error {
		rate := nearestMP3Rate(meta.SampleRate)
		if rate != meta.SampleRate {
			resampler = newLinearResampler(meta.SampleRate, rate)
		}
		enc = mp3.NewEncoder(rate, 1)
		pass = mp3PassSamples(rate)
		return nil
	}, func(samples []float32) error {
		if resampler != nil {
			scratch = resampler.Process(samples, scratch[:0])
			samples = scratch
		}
		pending = appendPCM16(pending, samples)

		complete := (len(pending) / mp3FrameSamples) * mp3FrameSamples
		if complete > 0 {
			writeMP3(enc, out, pending[:complete], pass)
			pending = append(pending[:0], pending[complete:]...)
		}
		return out.err
	})
	if err != nil {
		return fail(err)
	}

	if enc != nil {
		// An empty capture still gets one silent frame
		if len(pending) == 0 && out.n == 0 {
			pending = make([]int16, mp3FrameSamples)
		}
		for len(pending)%mp3FrameSamples != 0 {
			pending = append(pending, 0)
		}
		writeMP3(enc, out, pending, pass)
	}
	if out.err != nil {
		return fail(fmt.Errorf("%w: failed to write mp3 data: %v", audio.ErrIO, out.err))
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("%w: failed to flush mp3 data: %v", audio.ErrIO, err))
	}

	return audio.CommitTemp(tmp, outPath)
}

// mp3PassSamples is the frame length shine encodes per call: two granules
// for MPEG-1 rates, one below 32 kHz
func mp3PassSamples(rate int) int {
	if rate >= 32000 {
		return mp3FrameSamples
	}
	return mp3FrameSamples / 2
}

// writeMP3 hands samples to enc one frame at a time. shine's Write strides
// over interleaved stereo, so a longer mono buffer would lose every other frame.
func writeMP3(enc *mp3.Encoder, out *errWriter, samples []int16, pass int) {
	for off := 0; off+pass <= len(samples) && out.err == nil; off += pass {
		enc.Write(out, samples[off:off+pass])
	}
}

// nearestMP3Rate picks the encodable rate closest to rate, preferring the
// higher one on ties
func nearestMP3Rate(rate int) int {
	best := mp3SampleRates[0]
	for _, r := range mp3SampleRates {
		if absInt(r-rate) <= absInt(best-rate) {
			best = r
		}
	}
	return best
}

// appendPCM16 converts normalised samples to clipped signed 16-bit PCM
func appendPCM16(dst []int16, samples []float32) []int16 {
	for _, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		dst = append(dst, int16(v))
	}
	return dst
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// linearResampler converts a stream between rates by linear interpolation,
// carrying its phase and the last input sample across blocks
type linearResampler struct {
	step float64 // input samples per output sample
	pos  float64 // next output position, in input samples relative to the current block
	prev float32 // last sample of the previous block (position -1)
}

func newLinearResampler(inRate, outRate int) *linearResampler {
	return &linearResampler{step: float64(inRate) / float64(outRate)}
}

// Process appends the output samples computable from in to out
func (r *linearResampler) Process(in []float32, out []float32) []float32 {
	if len(in) == 0 {
		return out
	}
	for {
		i := int(math.Floor(r.pos))
		if i+1 >= len(in) {
			break
		}
		a := r.prev
		if i >= 0 {
			a = in[i]
		}
		frac := float32(r.pos - float64(i))
		out = append(out, a+frac*(in[i+1]-a))
		r.pos += r.step
	}
	r.pos -= float64(len(in))
	r.prev = in[len(in)-1]
	return out
}
