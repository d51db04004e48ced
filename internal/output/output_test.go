package output

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Version string `json:"version" yaml:"version"`
	Pending bool   `json:"pending" yaml:"pending"`
}

func (s sample) Text() string {
	return "Version: " + s.Version + "\n"
}

func TestWriterFormats(t *testing.T) {
	t.Parallel()

	v := sample{Version: "v.0.1.0", Pending: true}
	tests := []struct {
		format Format
		want   []string
	}{
		{FormatText, []string{"Version: v.0.1.0\n"}},
		{FormatJSON, []string{`"version": "v.0.1.0"`, `"pending": true`}},
		{FormatYAML, []string{"version: v.0.1.0", "pending: true"}},
	}

	for _, tc := range tests {
		t.Run(string(tc.format), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := NewWriter(&buf, tc.format).Write(v); err != nil {
				t.Fatalf("Write: %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(buf.String(), want) {
					t.Fatalf("output %q missing %q", buf.String(), want)
				}
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatText, "text": FormatText, "json": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q): got %q, %v want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}
