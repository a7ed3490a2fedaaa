package log

import (
	"slices"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{" warn ", LevelWarn},
		{"error", LevelError},
		{"bogus", DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"", DefaultFormat},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevels_Formats(t *testing.T) {
	levels := slices.Collect(Levels())
	if !slices.Equal(levels, []string{"trace", "debug", "info", "warn", "error"}) {
		t.Errorf("unexpected levels %v", levels)
	}

	formats := slices.Collect(Formats())
	if !slices.Equal(formats, []string{"text", "json"}) {
		t.Errorf("unexpected formats %v", formats)
	}
}

func TestMakeFormatTimeFunc(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	tests := []struct {
		layout string
		want   string
	}{
		{"RFC3339", "2024-03-09T14:05:06Z"},
		{"rfc-3339", "2024-03-09T14:05:06Z"},
		{"Kitchen", "2:05PM"},
		{"2006", "2024"},
		{"none", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			if got := makeFormatTimeFunc(tt.layout)(ts); got != tt.want {
				t.Errorf("layout %q: got %q, want %q", tt.layout, got, tt.want)
			}
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	c := apply(config{},
		WithDefaults(nil),
		WithLevel(LevelDebug),
		WithFormat(FormatJSON),
		WithCaller(true),
		WithPretty(false),
		nil,
	)

	if c.output == nil {
		t.Error("expected io.Discard output for nil writer")
	}

	if c.level != LevelDebug || c.format != FormatJSON || !c.caller || c.pretty {
		t.Errorf("options not applied: %+v", c)
	}
}
