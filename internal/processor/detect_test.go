package processor

import (
	"reflect"
	"testing"
)

func TestDetectEvents(t *testing.T) {
	power := []float64{0, 12.99, 13, 13.01, 500, -1}
	want := []bool{false, false, true, true, true, false}

	if got := DetectEvents(power, 13); !reflect.DeepEqual(got, want) {
		t.Errorf("DetectEvents() = %v, want %v", got, want)
	}
	if got := CountFlagged(want); got != 3 {
		t.Errorf("CountFlagged() = %d, want 3", got)
	}
	if got := DetectEvents(nil, 13); len(got) != 0 {
		t.Errorf("DetectEvents(nil) = %v, want empty", got)
	}
}

// maskOf builds a mask of length n with the given indices flagged
func maskOf(n int, flagged ...int) []bool {
	m := make([]bool, n)
	for _, i := range flagged {
		m[i] = true
	}
	return m
}

func TestDilate(t *testing.T) {
	tests := []struct {
		name   string
		mask   []bool
		radius int
		want   []int
	}{
		{"empty_mask", nil, 3, nil},
		{"nothing_flagged", maskOf(10), 3, nil},
		{"single_middle", maskOf(10, 5), 2, []int{3, 4, 5, 6, 7}},
		{"clipped_at_start", maskOf(10, 1), 3, []int{0, 1, 2, 3, 4}},
		{"clipped_at_end", maskOf(10, 9), 3, []int{6, 7, 8, 9}},
		{"overlapping_union", maskOf(20, 5, 7), 2, []int{3, 4, 5, 6, 7, 8, 9}},
		{"adjacent_no_gap", maskOf(20, 2, 8), 2, []int{0, 1, 2, 3, 4, 6, 7, 8, 9, 10}},
		{"radius_zero", maskOf(6, 1, 4), 0, []int{1, 4}},
		{"negative_radius_treated_as_zero", maskOf(6, 3), -2, []int{3}},
		{"radius_covers_whole_mask", maskOf(5, 2), 73, []int{0, 1, 2, 3, 4}},
		{"single_frame_mask", maskOf(1, 0), 73, []int{0}},
		{"all_flagged", maskOf(4, 0, 1, 2, 3), 1, []int{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dilate(tt.mask, tt.radius)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dilate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDilateSortedUnique(t *testing.T) {
	mask := make([]bool, 1000)
	for i := 0; i < len(mask); i += 37 {
		mask[i] = true
	}

	got := Dilate(mask, 20)
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("indices not strictly ascending at %d: %d after %d", i, got[i], got[i-1])
		}
	}
	if got[0] != 0 || got[len(got)-1] != 999 {
		t.Errorf("range = [%d, %d], want [0, 999]", got[0], got[len(got)-1])
	}
	// Gaps of 37 with radius 20 leave nothing uncovered
	if len(got) != 1000 {
		t.Errorf("got %d indices, want 1000", len(got))
	}
}
