package syntax

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Dialect selects the grammar the lexer and parser accept.
type Dialect int

const (
	Bash Dialect = iota
	POSIX
	Dash
	Ksh
	Zsh
)

// DefaultDialect is used when neither a shebang nor a file extension names
// one.
const DefaultDialect = Bash

var dialectName = [...]string{
	Bash:  "bash",
	POSIX: "posix",
	Dash:  "dash",
	Ksh:   "ksh",
	Zsh:   "zsh",
}

// dialectAlias maps every accepted spelling to a dialect.
var dialectAlias = map[string]Dialect{
	"bash":  Bash,
	"posix": POSIX,
	"sh":    POSIX,
	"dash":  Dash,
	"ash":   Dash,
	"ksh":   Ksh,
	"mksh":  Ksh,
	"ksh93": Ksh,
	"zsh":   Zsh,
}

// rejected names shells whose grammar is not POSIX-like.
var rejected = map[string]string{
	"fish":       "fish",
	"csh":        "csh",
	"tcsh":       "tcsh",
	"pwsh":       "powershell",
	"powershell": "powershell",
}

func (d Dialect) String() string {
	if d >= 0 && int(d) < len(dialectName) {
		return dialectName[d]
	}

	return fmt.Sprintf("Dialect(%d)", int(d))
}

// MarshalText encodes d by name.
func (d Dialect) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes a dialect name.
func (d *Dialect) UnmarshalText(b []byte) error {
	v, err := ParseDialect(string(b))
	if err != nil {
		return err
	}

	*d = v

	return nil
}

// Dialects returns the canonical names of all supported dialects.
func Dialects() []string { return slices.Clone(dialectName[:]) }

// UnsupportedDialectError reports a request for a shell this package cannot
// parse. Suggestion holds the closest supported name, if any.
type UnsupportedDialectError struct {
	Name       string
	Suggestion string
}

func (e *UnsupportedDialectError) Error() string {
	msg := fmt.Sprintf("unsupported shell dialect %q", e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}

	return msg
}

// ParseDialect resolves a dialect name or alias.
func ParseDialect(s string) (Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if d, ok := dialectAlias[key]; ok {
		return d, nil
	}

	err := &UnsupportedDialectError{Name: s}
	if _, ok := rejected[key]; ok {
		return DefaultDialect, err
	}

	names := make([]string, 0, len(dialectAlias))
	for name := range dialectAlias {
		names = append(names, name)
	}

	slices.Sort(names)

	if m := fuzzy.Find(key, names); len(m) > 0 {
		err.Suggestion = m[0].Str
	}

	return DefaultDialect, err
}

// DetectDialect chooses a dialect for the script at name with contents src.
// The shebang wins over the file extension; ok is false when neither names
// a dialect and [DefaultDialect] was returned. A shebang or extension naming
// a rejected shell yields an [UnsupportedDialectError].
func DetectDialect(name string, src []byte) (d Dialect, ok bool, err error) {
	if interp := shebangInterpreter(src); interp != "" {
		if d, ok := dialectAlias[interp]; ok {
			return d, true, nil
		}

		if _, bad := rejected[interp]; bad {
			return DefaultDialect, false, &UnsupportedDialectError{Name: interp}
		}
	}

	switch ext := strings.TrimPrefix(filepath.Ext(name), "."); ext {
	case "bash", "sh":
		return Bash, true, nil
	case "zsh":
		return Zsh, true, nil
	case "dash":
		return Dash, true, nil
	case "ksh":
		return Ksh, true, nil
	case "fish", "csh", "tcsh", "ps1", "psm1", "psd1":
		return DefaultDialect, false, &UnsupportedDialectError{Name: ext}
	}

	return DefaultDialect, false, nil
}

// shebangInterpreter returns the base name of the interpreter named by a
// leading "#!" line, following "env" indirection and skipping env flags.
func shebangInterpreter(src []byte) string {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return ""
	}

	line, _, _ := bufio.NewReader(bytes.NewReader(src[2:])).ReadLine()

	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return ""
	}

	interp := filepath.Base(fields[0])
	if interp == "env" {
		interp = ""

		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}

			interp = filepath.Base(f)

			break
		}
	}

	return interp
}

// Feature is a grammar extension that only some dialects accept.
type Feature int

const (
	Arrays Feature = iota
	AssocArrays
	ProcSubstitution
	ExtendedTest
	FunctionKeyword
	LocalKeyword
	SelectLoop
	PipeAll
	AmpRedirect
	HereString
	AnsiCQuote
	ArithCommand
	ArithFor
	BraceExpansion
	CaseFallthrough
	featureCount
)

var featureName = [...]string{
	Arrays:           "arrays",
	AssocArrays:      "associative-arrays",
	ProcSubstitution: "process-substitution",
	ExtendedTest:     "extended-test",
	FunctionKeyword:  "function-keyword",
	LocalKeyword:     "local-keyword",
	SelectLoop:       "select-loop",
	PipeAll:          "pipe-stderr",
	AmpRedirect:      "amp-redirect",
	HereString:       "here-string",
	AnsiCQuote:       "ansi-c-quote",
	ArithCommand:     "arith-command",
	ArithFor:         "arith-for",
	BraceExpansion:   "brace-expansion",
	CaseFallthrough:  "case-fallthrough",
}

func (f Feature) String() string {
	if f >= 0 && f < featureCount {
		return featureName[f]
	}

	return fmt.Sprintf("Feature(%d)", int(f))
}

// Features returns every feature in declaration order.
func Features() []Feature {
	fs := make([]Feature, featureCount)
	for i := range fs {
		fs[i] = Feature(i)
	}

	return fs
}

// featureSet is a bit set indexed by Feature.
type featureSet uint32

func setOf(fs ...Feature) featureSet {
	var s featureSet
	for _, f := range fs {
		s |= 1 << f
	}

	return s
}

func (s featureSet) without(fs ...Feature) featureSet { return s &^ setOf(fs...) }

var allFeatures = featureSet(1<<featureCount - 1)

var dialectFeatures = [...]featureSet{
	Bash:  allFeatures,
	POSIX: 0,
	Dash:  setOf(LocalKeyword),
	Ksh:   allFeatures.without(PipeAll, AmpRedirect, LocalKeyword),
	Zsh:   allFeatures,
}

// Supports reports whether d accepts feature f.
func (d Dialect) Supports(f Feature) bool {
	if d < 0 || int(d) >= len(dialectFeatures) {
		return false
	}

	return dialectFeatures[d]&(1<<f) != 0
}
