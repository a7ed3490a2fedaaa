package resolve

import (
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied by [DefaultConfig].
const (
	DefaultMaxDepth      = 15
	DefaultMaxEmbedSize  = 50 << 20
	DefaultSmallDataSize = 1 << 20
)

// Config holds the immutable values that steer resolution. The resolver
// never reads configuration files; callers fill this struct.
type Config struct {
	// MaxDepth bounds the chain of nested source statements.
	MaxDepth int `yaml:"max_depth" validate:"gte=1,lte=1024"`
	// FollowSymlinks resolves symbolic links when canonicalizing paths.
	FollowSymlinks bool `yaml:"follow_symlinks"`
	// BundleDirs are searched for external binaries that can be shipped
	// with the generated program.
	BundleDirs []string `yaml:"bundle_dirs" validate:"dive,required"`
	// SystemBinaries are external commands always expected on the target.
	SystemBinaries []string `yaml:"system_binaries" validate:"dive,required"`
	// MaxEmbedSize is the largest file that may be embedded.
	MaxEmbedSize int64 `yaml:"max_embed_size" validate:"gte=0"`
	// SmallDataSize is the largest data file embedded without other cues.
	SmallDataSize int64 `yaml:"small_data_size" validate:"gte=0"`
	// Precedence orders rule categories; earlier categories win. Missing
	// categories keep their default relative order after the listed ones.
	Precedence []Category `yaml:"precedence" validate:"unique"`
	// FailClosed turns an Embed decision into Runtime when a lower-ranked
	// matching rule asks for Runtime.
	FailClosed bool `yaml:"fail_closed"`
	// Rules are evaluated before the built-in rules of the same category.
	Rules []RuleSpec `yaml:"rules" validate:"dive"`
	// Parallel bounds concurrent file reads; zero means unbounded.
	Parallel int `yaml:"parallel" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		MaxDepth:       DefaultMaxDepth,
		FollowSymlinks: true,
		MaxEmbedSize:   DefaultMaxEmbedSize,
		SmallDataSize:  DefaultSmallDataSize,
		Precedence:     DefaultPrecedence(),
		FailClosed:     true,
		Parallel:       4,
	}
}

// Kind is the type of a dependency.
type Kind int

const (
	LocalFile Kind = iota
	ExternalBinary
	NetworkResource
)

var kindName = [...]string{
	LocalFile:       "local-file",
	ExternalBinary:  "external-binary",
	NetworkResource: "network-resource",
}

func (k Kind) String() string { return enumString(kindName[:], int(k), "Kind") }

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Class is the classification of a file dependency.
type Class int

const (
	Unresolved Class = iota
	Embed
	Runtime
	ContextDependent
)

var className = [...]string{
	Unresolved:       "unresolved",
	Embed:            "embed",
	Runtime:          "runtime",
	ContextDependent: "context-dependent",
}

func (c Class) String() string { return enumString(className[:], int(c), "Class") }

// MarshalText encodes c by name.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a class name.
func (c *Class) UnmarshalText(b []byte) error {
	i, err := enumParse(className[:], string(b), "class")
	*c = Class(i)

	return err
}

// Category groups classification rules. Categories are evaluated in
// precedence order.
type Category int

const (
	CategorySystem Category = iota
	CategorySensitive
	CategorySize
	CategoryStatic
	CategoryContext
	numCategories
)

var categoryName = [...]string{
	CategorySystem:    "system",
	CategorySensitive: "sensitive",
	CategorySize:      "size",
	CategoryStatic:    "static",
	CategoryContext:   "context",
}

func (c Category) String() string { return enumString(categoryName[:], int(c), "Category") }

// MarshalText encodes c by name.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(b []byte) error {
	i, err := enumParse(categoryName[:], string(b), "category")
	*c = Category(i)

	return err
}

// DefaultPrecedence returns system > sensitive > size > static > context.
func DefaultPrecedence() []Category {
	return []Category{
		CategorySystem, CategorySensitive, CategorySize, CategoryStatic, CategoryContext,
	}
}

// ranks maps each category to its position under precedence p.
func ranks(p []Category) [numCategories]int {
	var r [numCategories]int

	seen := [numCategories]bool{}
	n := 0

	for _, c := range p {
		if c >= 0 && c < numCategories && !seen[c] {
			seen[c] = true
			r[c] = n
			n++
		}
	}

	for _, c := range DefaultPrecedence() {
		if !seen[c] {
			r[c] = n
			n++
		}
	}

	return r
}

func enumString(names []string, i int, typ string) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}

	return typ + "(" + strconv.Itoa(i) + ")"
}

func enumParse(names []string, s, what string) (int, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, nil
		}
	}

	return 0, fmt.Errorf("unknown %s %q", what, s)
}
