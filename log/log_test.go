package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestLogger_Make_DefaultConfiguration(t *testing.T) {
	var buf bytes.Buffer

	logger := Make(&buf)

	if logger.Level() != LevelInfo {
		t.Errorf("expected default level info, got %v", logger.Level())
	}

	if logger.Format() != FormatText {
		t.Errorf("expected default format text, got %v", logger.Format())
	}

	if logger.caller {
		t.Error("expected caller disabled by default")
	}
}

func TestLogger_ZeroValue_Discards(t *testing.T) {
	var logger Logger

	logger.Info("ignored")
	logger.With(slog.String("k", "v")).Error("ignored")

	if logger.Level() != DefaultLevel {
		t.Errorf("expected default level, got %v", logger.Level())
	}
}

func TestLogger_LogMethods_RespectLevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		logFunc  func(Logger, string, ...slog.Attr)
		minLevel Level
		logged   bool
	}{
		{"trace at trace", (Logger).Trace, LevelTrace, true},
		{"trace at debug", (Logger).Trace, LevelDebug, false},
		{"debug at debug", (Logger).Debug, LevelDebug, true},
		{"debug at info", (Logger).Debug, LevelInfo, false},
		{"info at warn", (Logger).Info, LevelWarn, false},
		{"warn at warn", (Logger).Warn, LevelWarn, true},
		{"error at debug", (Logger).Error, LevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := Make(&buf, WithLevel(tt.minLevel), WithPretty(false))
			tt.logFunc(logger, "test message")

			if (buf.Len() > 0) != tt.logged {
				t.Errorf("expected logged=%v, got output %q", tt.logged, buf.String())
			}
		})
	}
}

func TestLogger_Make_WithFormat_SetsOutputFormat(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer

		logger := Make(&buf, WithFormat(FormatJSON), WithPretty(false))
		logger.Trace("hidden")
		logger.Info("test message", slog.String("key", "value"))

		var result map[string]any
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse JSON output: %v", err)
		}

		if result["msg"] != "test message" || result["key"] != "value" {
			t.Errorf("unexpected record: %v", result)
		}

		if result["level"] != "INFO" {
			t.Errorf("expected level INFO, got %v", result["level"])
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer

		logger := Make(&buf, WithFormat(FormatText), WithPretty(false))
		logger.Info("test message", slog.String("key", "value"))

		if !strings.Contains(buf.String(), "key=value") {
			t.Errorf("key=value not found in %q", buf.String())
		}
	})

	t.Run("trace level name", func(t *testing.T) {
		var buf bytes.Buffer

		logger := Make(&buf, WithLevel(LevelTrace), WithPretty(false))
		logger.Trace("deep")

		if !strings.Contains(buf.String(), "level=TRACE") {
			t.Errorf("expected TRACE level in %q", buf.String())
		}
	})
}

func TestLogger_Pretty(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   []string
	}{
		{"text", FormatText, []string{"INFO", "hello", "unit=a.sh", "count=3", "ok=true"}},
		{"json", FormatJSON, []string{`"msg": "hello"`, `"unit": "a.sh"`, `"count": 3`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := Make(&buf, WithFormat(tt.format), WithTimeLayout("none"))
			logger.With(slog.String("unit", "a.sh")).
				Info("hello", slog.Int("count", 3), slog.Bool("ok", true))

			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("expected %q in %q", w, buf.String())
				}
			}
		})
	}
}

func TestLogger_WithCaller(t *testing.T) {
	var buf bytes.Buffer

	logger := Make(&buf, WithCaller(true), WithPretty(false))
	logger.Info("test message")

	if !strings.Contains(buf.String(), "log_test.go") {
		t.Errorf("caller file missing from %q", buf.String())
	}
}

func TestLogger_Wrap_KeepsBase(t *testing.T) {
	var buf bytes.Buffer

	base := Make(&buf, WithLevel(LevelWarn), WithPretty(false))
	wrapped := base.Wrap(WithFormat(FormatJSON))

	if wrapped.Level() != LevelWarn {
		t.Errorf("expected wrapped level warn, got %v", wrapped.Level())
	}

	if wrapped.Format() != FormatJSON {
		t.Errorf("expected wrapped format json, got %v", wrapped.Format())
	}

	if base.Format() != FormatText {
		t.Error("wrap mutated the base logger")
	}
}

func TestLogger_ConcurrentCalls_ThreadSafe(t *testing.T) {
	var buf bytes.Buffer

	logger := Make(&buf)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()
			logger.Info("concurrent message", slog.Int("id", id))
		}(i)
	}

	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 100 {
		t.Errorf("expected 100 log lines, got %d", len(lines))
	}
}
