package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteKeyValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       string
	}{
		{"Tuned", "145.800 MHz", "Tuned:"},
		{"Station", "London", "Station:"},
		{"Library", "/srv/captures", "Library:"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		writeKeyValue(&buf, tt.key, tt.value)
		line := buf.String()
		if !strings.Contains(line, tt.want) || !strings.Contains(line, tt.value) {
			t.Errorf("writeKeyValue(%q, %q) = %q", tt.key, tt.value, line)
		}
		// Readings line up after the padded label
		if idx := strings.Index(line, tt.value); idx < labelWidth {
			t.Errorf("reading starts at column %d, want at least %d", idx, labelWidth)
		}
	}
}

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	writeVersion(&buf, "1.2.3")
	out := buf.String()
	for _, want := range []string{"Squelch", "Version:", "1.2.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}
