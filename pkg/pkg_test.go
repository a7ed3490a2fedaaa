package pkg

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	if Name != "shgo" {
		t.Errorf("Expected Name to be %q, got %q", "shgo", Name)
	}

	if !strings.HasSuffix(Module, "/"+Name) {
		t.Errorf("Expected Module %q to end with %q", Module, Name)
	}
}

func TestVersion(t *testing.T) {
	buf, err := os.ReadFile("VERSION")
	if err != nil {
		t.Fatalf("Failed to read VERSION file: %v", err)
	}

	if content := strings.TrimSpace(string(buf)); Version() != content {
		t.Errorf("Expected Version to be %q, got %q", content, Version())
	}
}

func TestAuthor(t *testing.T) {
	if !slices.ContainsFunc(Author, func(a AuthorInfo) bool {
		return a.Name == "ardnew"
	}) {
		t.Error("Expected Author to contain ardnew")
	}
}

func TestError(t *testing.T) {
	sentinel := NewError("read input")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"message only", sentinel, "read input"},
		{"wrapped", sentinel.Wrap(io.EOF), "read input: EOF"},
		{"cause only", WrapError(io.EOF), "EOF"},
		{"with attrs", sentinel.With(slog.String("path", "a.sh")), "read input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	derived := sentinel.Wrap(io.EOF).With(slog.Int("line", 3))
	if !errors.Is(derived, sentinel) {
		t.Error("derived error does not match its sentinel")
	}

	if !errors.Is(derived, io.EOF) {
		t.Error("derived error does not match wrapped cause")
	}

	if errors.Is(derived, NewError("read input")) {
		t.Error("derived error matches an unrelated sentinel")
	}

	if WrapError(derived) != derived {
		t.Error("WrapError re-wrapped an existing Error")
	}

	if n := len(derived.Attrs()); n != 1 {
		t.Errorf("expected 1 attr, got %d", n)
	}
}

func TestEnv(t *testing.T) {
	p := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(Prefix()))

	tests := []struct{ key, want string }{
		{"config_dir", p + "_CONFIG_DIR"},
		{"cache-dir", p + "_CACHE_DIR"},
	}

	for _, tt := range tests {
		if got := Env(tt.key); got != tt.want {
			t.Errorf("Env(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestUserDir(t *testing.T) {
	const override = "SHGO_TEST_USER_DIR"

	fail := func() (string, error) { return "", os.ErrNotExist }
	base := func() (string, error) { return "/base", nil }

	t.Setenv(override, "/override")

	if got := userDir(override, base, ".x"); got != "/override" {
		t.Errorf("override: got %q", got)
	}

	t.Setenv(override, "")

	if got := userDir(override, base, ".x"); got != "/base/"+Prefix() {
		t.Errorf("platform: got %q", got)
	}

	t.Setenv("HOME", "/home/someone")

	if got := userDir(override, fail, ".x"); got != "/home/someone/.x/"+Prefix() {
		t.Errorf("home: got %q", got)
	}
}
