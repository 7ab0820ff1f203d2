package processor

// DetectEvents flags every frame whose mean power reaches the threshold
func DetectEvents(power []float64, threshold float64) []bool {
	mask := make([]bool, len(power))
	for i, p := range power {
		mask[i] = p >= threshold
	}
	return mask
}

// Dilate expands every flagged frame to [idx-radius, idx+radius], clipped to
// the valid frame range of the mask, and returns the union as an ascending list
// of unique frame indices.
//
// Dilation never looks past the mask, so an event near a chunk edge keeps no
// context from the neighbouring chunk.
func Dilate(mask []bool, radius int) []int {
	n := len(mask)
	if n == 0 {
		return nil
	}
	if radius < 0 {
		radius = 0
	}

	var retained []int
	next := 0 // first index not yet emitted
	for idx, flagged := range mask {
		if !flagged {
			continue
		}
		lo := max(idx-radius, next)
		hi := min(idx+radius, n-1)
		for i := lo; i <= hi; i++ {
			retained = append(retained, i)
		}
		if hi+1 > next {
			next = hi + 1
		}
	}
	return retained
}

// CountFlagged returns the number of flagged frames in a mask
func CountFlagged(mask []bool) int {
	count := 0
	for _, f := range mask {
		if f {
			count++
		}
	}
	return count
}
