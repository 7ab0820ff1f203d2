package logging

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/linuxmatters/squelch/internal/processor"
)

// ReceiverTip represents a single piece of actionable receiver or threshold
// advice derived from a filter run.
type ReceiverTip struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable advice (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "no_activity")
}

// MaxReceiverTips is the maximum number of tips to return.
const MaxReceiverTips = 4

// fragmentedSegmentsPerHour is the retained-segment rate above which bursts
// are considered chopped up
const fragmentedSegmentsPerHour = 600

// GenerateReceiverTips analyses a processing result and returns prioritised
// suggestions for the receiver chain and detection settings.
func GenerateReceiverTips(r *processor.ProcessingResult) []ReceiverTip {
	if r == nil || r.Filter == nil || r.Config == nil {
		return nil
	}

	var tips []ReceiverTip
	firedRules := make(map[string]bool)

	rules := []func(*processor.ProcessingResult) *ReceiverTip{
		tipShortCapture,
		tipNoActivity,
		tipNearContinuous,
		tipNoiseFloorClose,
		tipMarginalBursts,
		tipFragmented,
	}

	for _, rule := range rules {
		if tip := rule(r); tip != nil {
			tips = append(tips, *tip)
			firedRules[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, firedRules)

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})

	if len(tips) > MaxReceiverTips {
		tips = tips[:MaxReceiverTips]
	}
	return tips
}

// applyExclusions removes tips that are redundant when a more specific tip
// has already fired.
func applyExclusions(tips []ReceiverTip, fired map[string]bool) []ReceiverTip {
	var result []ReceiverTip
	for _, tip := range tips {
		switch tip.RuleID {
		case "no_activity":
			if fired["short_capture"] {
				continue
			}
		case "noise_floor_close", "fragmented":
			if fired["near_continuous"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// tipShortCapture fires when the capture holds no complete analysis frame
func tipShortCapture(r *processor.ProcessingResult) *ReceiverTip {
	if r.Filter.FramesAnalysed > 0 {
		return nil
	}
	return &ReceiverTip{
		Priority: 10,
		RuleID:   "short_capture",
		Message:  "The capture is shorter than one analysis frame - check the receiver pipeline started and the dongle was free.",
	}
}

// tipNoActivity fires when nothing reached the threshold
func tipNoActivity(r *processor.ProcessingResult) *ReceiverTip {
	if r.Filter.FramesFlagged > 0 {
		return nil
	}
	msg := "No transmissions reached the threshold - check the antenna and frequency, or lower the threshold."
	if r.Filter.PeakPower > 0 {
		msg = fmt.Sprintf("No transmissions reached the threshold (peak %s dB against %s dB) - check the antenna and frequency, or lower the threshold.",
			formatPowerDB(r.Filter.PeakPower, 1), formatPowerDB(r.Config.Threshold, 1))
	}
	return &ReceiverTip{Priority: 9, RuleID: "no_activity", Message: msg}
}

// tipNearContinuous fires when most of the capture was kept
func tipNearContinuous(r *processor.ProcessingResult) *ReceiverTip {
	if r.RetainedRatio() < 0.6 {
		return nil
	}
	return &ReceiverTip{
		Priority: 8,
		RuleID:   "near_continuous",
		Message:  fmt.Sprintf("%.0f%% of the capture was kept - a stuck carrier, local interference or a threshold below the noise floor is likely.", r.RetainedRatio()*100),
	}
}

// tipNoiseFloorClose fires when the average power sits within 3 dB of the
// threshold, so noise alone will trip detection
func tipNoiseFloorClose(r *processor.ProcessingResult) *ReceiverTip {
	if r.Spectrogram == nil || r.Spectrogram.Frames == 0 {
		return nil
	}
	marginDB := 10 * math.Log10(r.Config.Threshold/math.Max(r.Spectrogram.MeanPower, 1e-300))
	if marginDB >= 3 {
		return nil
	}
	return &ReceiverTip{
		Priority: 7,
		RuleID:   "noise_floor_close",
		Message:  fmt.Sprintf("Average power is only %.1f dB below the threshold - reduce rtl_fm gain or raise the threshold.", marginDB),
	}
}

// tipMarginalBursts fires when the strongest burst barely clears the threshold
func tipMarginalBursts(r *processor.ProcessingResult) *ReceiverTip {
	if r.Filter.FramesFlagged == 0 || r.Filter.PeakPower <= 0 {
		return nil
	}
	headroomDB := 10 * math.Log10(r.Filter.PeakPower/r.Config.Threshold)
	if headroomDB >= 3 {
		return nil
	}
	return &ReceiverTip{
		Priority: 5,
		RuleID:   "marginal_bursts",
		Message:  fmt.Sprintf("The strongest burst cleared the threshold by only %.1f dB - weak stations may be missed; consider more gain.", headroomDB),
	}
}

// tipFragmented fires when retained audio is split into many short segments
func tipFragmented(r *processor.ProcessingResult) *ReceiverTip {
	hours := r.InputDuration / 3600
	if hours <= 0 || r.Filter.Segments == 0 {
		return nil
	}
	perHour := float64(r.Filter.Segments) / hours
	if perHour < fragmentedSegmentsPerHour {
		return nil
	}
	return &ReceiverTip{
		Priority: 4,
		RuleID:   "fragmented",
		Message:  fmt.Sprintf("Retained audio is split into %.0f segments per hour - a larger dilation radius would keep overs together.", perHour),
	}
}
