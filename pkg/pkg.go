//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

// Version is the semantic version of the shgo module embedded at build time.
//
//go:embed VERSION
var version string

// Version returns the embedded semantic version without surrounding space.
func Version() string { return strings.TrimSpace(version) }

const (
	// Name is the canonical command and module identifier. It appears in help
	// text, generated program headers, and default config paths.
	Name = "shgo"
	// Description is a short, human-readable summary of the project used in
	// help output and documentation.
	Description = "Shell script to native Go converter"
	// Module is the import path of this module. Generated programs import the
	// runtime-support library beneath it.
	Module = "github.com/ardnew/shgo"
)

// AuthorInfo represents an individual author's name and email address.
type AuthorInfo struct {
	Name  string
	Email string
}

// Author lists the primary author(s) of the project for display in metadata.
var Author = []AuthorInfo{
	{"ardnew", "andrew@ardnew.com"},
}
