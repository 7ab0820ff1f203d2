// Package logging provides analysis report generation for filtered captures.
// This file contains reusable table formatting infrastructure for multi-column
// metric comparison tables (Input → Filtered).

package logging

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MetricRow represents a single row in a comparison table.
// Values are pre-formatted strings to allow for mixed formatting (decimals, scientific notation).
type MetricRow struct {
	Label          string   // Row label, e.g., "Duration"
	Values         []string // One value per column (Input, Filtered)
	Unit           string   // Unit suffix, e.g., "s", "dB", "" for unitless
	Interpretation string   // Optional interpretation text (only shown if non-empty)
}

// MetricTable formats aligned columns for metric comparison.
// Handles variable column widths, missing values, and optional interpretation column.
type MetricTable struct {
	Headers []string    // Column headers, e.g., ["Input", "Filtered"]
	Rows    []MetricRow // Data rows
}

// String renders the table with aligned columns.
// - Labels are left-aligned
// - Numeric values are right-aligned within their column
// - Units are appended after the last value column
// - Interpretation column only shown if any row has one
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasInterpretation := false
	for _, row := range t.Rows {
		if row.Interpretation != "" {
			hasInterpretation = true
			break
		}
	}

	labelWidth := 0
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, len(row.Label))
	}

	valueWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		valueWidths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, val := range row.Values {
			if i < len(valueWidths) {
				valueWidths[i] = max(valueWidths[i], len(val))
			}
		}
	}

	unitWidth := 0
	for _, row := range t.Rows {
		unitWidth = max(unitWidth, len(row.Unit))
	}

	var sb strings.Builder

	// Header row
	sb.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, header := range t.Headers {
		sb.WriteString(fmt.Sprintf("%*s  ", valueWidths[i], header))
	}
	if unitWidth > 0 {
		sb.WriteString(strings.Repeat(" ", unitWidth+1))
	}
	if hasInterpretation {
		sb.WriteString("Interpretation")
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		sb.WriteString(fmt.Sprintf("%-*s  ", labelWidth, row.Label))

		for i := 0; i < len(t.Headers); i++ {
			val := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				val = row.Values[i]
			}
			sb.WriteString(fmt.Sprintf("%*s  ", valueWidths[i], val))
		}

		if unitWidth > 0 {
			sb.WriteString(fmt.Sprintf("%-*s ", unitWidth, row.Unit))
		}
		if hasInterpretation {
			sb.WriteString(row.Interpretation)
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// =============================================================================
// Metric Formatting Helpers
// =============================================================================

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// PowerFloorDB is the level below which mean power is shown as silence.
// A full-scale tone at the reference window length sits near +26 dB.
const PowerFloorDB = -120.0

// formatMetric formats a numeric value with appropriate precision.
// Handles:
// - Regular floats: formatted to specified decimal places
// - Very small values (< 0.0001): scientific notation
// - NaN/Inf: returns MissingValue
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}

	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}

	return strconv.FormatFloat(value, 'f', decimals, 64)
}

// formatPowerDB formats a linear mean power as decibels.
// Zero power or anything under the floor shows "< -120".
func formatPowerDB(power float64, decimals int) string {
	if math.IsNaN(power) || math.IsInf(power, 1) {
		return MissingValue
	}
	if power <= 0 {
		return "< -120"
	}
	dB := 10 * math.Log10(power)
	if dB <= PowerFloorDB {
		return "< -120"
	}
	return strconv.FormatFloat(dB, 'f', decimals, 64)
}

// formatMetricWithUnit combines value and unit for display.
// Returns "value unit" if unit is non-empty, otherwise just "value".
func formatMetricWithUnit(value float64, decimals int, unit string) string {
	formatted := formatMetric(value, decimals)
	if formatted == MissingValue || unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// formatCount formats an integer count with thousands separators
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

// =============================================================================
// Table Builder Helpers
// =============================================================================

// NewMetricTable creates a table with the given headers, defaulting to
// Input/Filtered
func NewMetricTable(headers ...string) *MetricTable {
	if len(headers) == 0 {
		headers = []string{"Input", "Filtered"}
	}
	return &MetricTable{
		Headers: headers,
		Rows:    make([]MetricRow, 0),
	}
}

// AddRow adds a row to the table with pre-formatted values.
func (t *MetricTable) AddRow(label string, values []string, unit string, interpretation string) {
	t.Rows = append(t.Rows, MetricRow{
		Label:          label,
		Values:         values,
		Unit:           unit,
		Interpretation: interpretation,
	})
}

// AddMetricRow adds a row with numeric values, one per column, formatting them
// automatically. Pass math.NaN() for missing values - they will display as "-".
func (t *MetricTable) AddMetricRow(label string, values []float64, decimals int, unit string, interpretation string) {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = formatMetric(v, decimals)
	}
	t.AddRow(label, formatted, unit, interpretation)
}

// AddCountRow adds a row of integer counts
func (t *MetricTable) AddCountRow(label string, values []int64, interpretation string) {
	formatted := make([]string, len(values))
	for i, v := range values {
		if v < 0 {
			formatted[i] = MissingValue
			continue
		}
		formatted[i] = formatCount(v)
	}
	t.AddRow(label, formatted, "", interpretation)
}
