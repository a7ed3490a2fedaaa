package resolve

import (
	"slices"
	"strings"

	"github.com/ardnew/shgo/syntax"
)

// Requirement is how much of a terminal a script needs.
type Requirement int

const (
	TerminalNone Requirement = iota
	TerminalFeatures
	TerminalInteractive
	TerminalFullscreen
)

var requirementName = [...]string{
	TerminalNone:        "none",
	TerminalFeatures:    "features",
	TerminalInteractive: "interactive",
	TerminalFullscreen:  "fullscreen",
}

func (r Requirement) String() string {
	return enumString(requirementName[:], int(r), "Requirement")
}

// MarshalText encodes r by name.
func (r Requirement) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Terminal features detected in scripts.
const (
	FeatureColor      = "color"
	FeatureCursor     = "cursor"
	FeatureSize       = "size"
	FeatureRawMode    = "raw-mode"
	FeatureAltScreen  = "alternate-screen"
	FeatureInput      = "input"
	FeaturePassword   = "password"
	FeatureMenu       = "menu"
	FeatureProgress   = "progress"
	FeatureLiveOutput = "live-output"
	FeatureFullscreen = "fullscreen"
)

// Terminal is the terminal analysis of one or more units.
type Terminal struct {
	Requirement Requirement `yaml:"requirement"`
	Features    []string    `yaml:"features,omitempty"`
	Commands    []string    `yaml:"commands,omitempty"`
}

// Headless reports whether the program can run without a terminal.
func (t Terminal) Headless() bool { return t.Requirement == TerminalNone }

// Interactive reports whether the program reads from the user.
func (t Terminal) Interactive() bool { return t.Requirement >= TerminalInteractive }

// Has reports whether feature f was detected.
func (t Terminal) Has(f string) bool { return slices.Contains(t.Features, f) }

// Merge folds o into t.
func (t *Terminal) Merge(o Terminal) {
	t.Requirement = max(t.Requirement, o.Requirement)
	t.Features = union(t.Features, o.Features)
	t.Commands = union(t.Commands, o.Commands)
}

func union(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)

	return slices.Compact(out)
}

// AnalyzeTerminal reports the terminal features f uses.
func AnalyzeTerminal(f *syntax.File) Terminal {
	var t Terminal

	syntax.Walk(f, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.SimpleCommand:
			t.command(n.Args)
		case *syntax.SelectClause:
			t.add(FeatureMenu)
			t.Commands = append(t.Commands, "select")
		case *syntax.Lit:
			t.text(n.Value)
		case *syntax.SglQuoted:
			t.text(n.Value)
		case *syntax.ParamExp:
			switch n.Name {
			case "COLUMNS", "LINES":
				t.add(FeatureSize)
			}
		}

		return true
	})

	t.Features = union(t.Features, nil)
	t.Commands = union(t.Commands, nil)
	t.Requirement = requirement(t.Features)

	return t
}

func (t *Terminal) add(f ...string) { t.Features = append(t.Features, f...) }

func (t *Terminal) command(args []*syntax.Word) {
	if len(args) == 0 {
		return
	}

	name, ok := args[0].Lit()
	if !ok {
		return
	}

	rest := make([]string, 0, len(args)-1)
	for _, w := range args[1:] {
		if s, ok := w.Value(); ok {
			rest = append(rest, s)
		}
	}

	switch name {
	case "read":
		t.add(FeatureInput)
		t.Commands = append(t.Commands, name)

		if hasShortFlag(rest, 's') {
			t.add(FeaturePassword)
		}
	case "tput":
		t.add(FeatureCursor, FeatureColor)

		if len(rest) > 0 {
			switch rest[0] {
			case "cols", "lines":
				t.add(FeatureSize)
			case "smcup", "rmcup":
				t.add(FeatureAltScreen)
			}
		}
	case "clear", "reset":
		t.add(FeatureCursor)
	case "stty":
		t.add(FeatureRawMode)

		if slices.Contains(rest, "-echo") {
			t.add(FeaturePassword)
		}
	case "dialog", "whiptail", "zenity", "vim", "vi", "nano", "emacs", "less", "more", "top", "htop":
		t.add(FeatureFullscreen)
		t.Commands = append(t.Commands, name)
	case "pv", "progress":
		t.add(FeatureProgress)
	case "lolcat":
		t.add(FeatureColor)
	case "watch":
		t.add(FeatureLiveOutput)
		t.Commands = append(t.Commands, name)
	case "tail":
		if slices.Contains(rest, "-f") || slices.Contains(rest, "-F") {
			t.add(FeatureLiveOutput)
			t.Commands = append(t.Commands, "tail -f")
		}
	}
}

func hasShortFlag(args []string, f byte) bool {
	for _, a := range args {
		if len(a) > 1 && a[0] == '-' && a[1] != '-' && strings.IndexByte(a[1:], f) >= 0 {
			return true
		}
	}

	return false
}

func (t *Terminal) text(s string) {
	if strings.Contains(s, "\x1b[") || strings.Contains(s, `\033[`) ||
		strings.Contains(s, `\e[`) || strings.Contains(s, `\x1b[`) {
		t.add(FeatureColor)

		if strings.Contains(s, "?1049h") || strings.Contains(s, "?1049l") {
			t.add(FeatureAltScreen)
		}
	}
}

func requirement(features []string) Requirement {
	has := func(fs ...string) bool {
		return slices.ContainsFunc(fs, func(f string) bool { return slices.Contains(features, f) })
	}

	switch {
	case has(FeatureFullscreen, FeatureAltScreen):
		return TerminalFullscreen
	case has(FeatureInput, FeatureMenu, FeaturePassword, FeatureLiveOutput):
		return TerminalInteractive
	case len(features) > 0:
		return TerminalFeatures
	}

	return TerminalNone
}
