package processor

import (
	"math"
	"testing"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"empty", 0, 0},
		{"one_short", 2047, 0},
		{"exactly_one_window", 2048, 1},
		{"one_hop_short_of_two", 2559, 1},
		{"two_frames", 2560, 2},
		{"one_second", 12500, 21},
		{"twenty_seconds", 250000, 485},
		{"six_hours", 21558 * 12500, 526315},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameCount(tt.n, 2048, 512); got != tt.want {
				t.Errorf("FrameCount(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}

	if got := FrameCount(4096, 2048, 0); got != 0 {
		t.Errorf("zero hop should yield no frames, got %d", got)
	}
}

func TestHannWindowPeriodic(t *testing.T) {
	w := hannWindow(2048)

	if w[0] != 0 {
		t.Errorf("w[0] = %v, want 0", w[0])
	}
	if math.Abs(w[1024]-1) > 1e-12 {
		t.Errorf("w[N/2] = %v, want 1", w[1024])
	}
	// Periodic: symmetric about N/2 with no repeated endpoint
	for i := 1; i < 1024; i++ {
		if math.Abs(w[i]-w[2048-i]) > 1e-12 {
			t.Fatalf("w[%d]=%v differs from w[%d]=%v", i, w[i], 2048-i, w[2048-i])
		}
	}
}

func TestMeanPowerCalibration(t *testing.T) {
	tests := []struct {
		name string
		amp  float64
		want float64
	}{
		// Half the Parseval energy of a Hann-windowed sine over W/2+1 bins:
		// W²·3A²/32 / 1025
		{"full_scale", 1.0, 383.63},
		{"half_scale", 0.5, 95.91},
		{"minus_20_dBFS", 0.1, 3.836},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := synthesise(TestAudioOptions{DurationSecs: 1, ToneAmp: tt.amp})
			power := NewSpectralAnalyzer(2048, 512).MeanPower(samples)

			if len(power) != 21 {
				t.Fatalf("got %d frames, want 21", len(power))
			}
			for i, p := range power {
				if math.Abs(p-tt.want)/tt.want > 0.02 {
					t.Errorf("frame %d power = %.3f, want %.3f ±2%%", i, p, tt.want)
				}
			}
		})
	}
}

func TestMeanPowerSilence(t *testing.T) {
	power := NewSpectralAnalyzer(2048, 512).MeanPower(make([]float32, 5000))
	if len(power) != FrameCount(5000, 2048, 512) {
		t.Fatalf("got %d frames", len(power))
	}
	for i, p := range power {
		if p != 0 {
			t.Errorf("frame %d power = %v, want 0", i, p)
		}
	}
}

func TestMeanPowerShortInput(t *testing.T) {
	if power := NewSpectralAnalyzer(2048, 512).MeanPower(make([]float32, 2047)); len(power) != 0 {
		t.Errorf("input shorter than one window yielded %d frames", len(power))
	}
}

func TestMeanPowerReusesAnalyzer(t *testing.T) {
	a := NewSpectralAnalyzer(2048, 512)
	loud := synthesise(TestAudioOptions{DurationSecs: 0.5, ToneAmp: 0.8})
	quiet := synthesise(TestAudioOptions{DurationSecs: 0.5, NoiseLevel: -60})

	first := a.MeanPower(loud)
	a.MeanPower(quiet)
	again := a.MeanPower(loud)

	for i := range first {
		if first[i] != again[i] {
			t.Fatalf("frame %d differs between runs: %v vs %v", i, first[i], again[i])
		}
	}
}
