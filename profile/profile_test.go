package profile

import (
	"slices"
	"testing"
)

func TestStart_Disabled(t *testing.T) {
	t.Parallel()

	for _, opts := range [][]Option{
		nil,
		{WithMode("")},
		{WithMode("nonexistent"), WithDir(t.TempDir()), WithQuiet(true)},
	} {
		s := Start(opts...)
		if _, ok := s.(nop); !ok {
			t.Errorf("Start(%d options) = %T, want nop", len(opts), s)
		}

		s.Stop()
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	var s Settings
	for _, opt := range []Option{WithMode("cpu"), WithDir("/tmp/p"), WithQuiet(true)} {
		opt(&s)
	}

	want := Settings{Mode: "cpu", Dir: "/tmp/p", Quiet: true}
	if s != want {
		t.Errorf("Settings = %+v, want %+v", s, want)
	}
}

func TestModes_Sorted(t *testing.T) {
	t.Parallel()

	if m := Modes(); !slices.IsSorted(m) {
		t.Errorf("Modes() = %v, not sorted", m)
	}
}
