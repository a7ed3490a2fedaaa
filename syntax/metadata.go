package syntax

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/anmitsu/go-shlex"
)

// Metadata is the header of a script: its shebang line and the "@Key:
// value" tags of the leading comment block.
type Metadata struct {
	Shebang      string            `yaml:"shebang,omitempty"      json:"shebang,omitempty"`
	Version      string            `yaml:"version,omitempty"      json:"version,omitempty"`
	Author       string            `yaml:"author,omitempty"       json:"author,omitempty"`
	Description  string            `yaml:"description,omitempty"  json:"description,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"      json:"headers,omitempty"`
}

// ParseMetadata reads the leading comment block of src. Scanning stops at
// the first line that is neither blank nor a comment. A "@Dependency" value
// may name several commands, split with shell quoting rules.
func ParseMetadata(src []byte) *Metadata {
	m := &Metadata{}

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(nil, len(src)+1)

	first := true

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if first && strings.HasPrefix(line, "#!") {
			m.Shebang = line
			first = false

			continue
		}

		first = false

		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "#") {
			break
		}

		m.tag(strings.TrimSpace(strings.TrimLeft(line, "#")))
	}

	return m
}

func (m *Metadata) tag(comment string) {
	if !strings.HasPrefix(comment, "@") {
		return
	}

	key, value, ok := strings.Cut(comment[1:], ":")
	if !ok {
		return
	}

	key, value = strings.TrimSpace(key), strings.TrimSpace(value)

	switch key {
	case "Version":
		m.Version = value
	case "Author":
		m.Author = value
	case "Description":
		m.Description = value
	case "Dependency":
		deps, err := shlex.Split(value, true)
		if err != nil {
			deps = strings.Fields(value)
		}

		m.Dependencies = append(m.Dependencies, deps...)
	default:
		if key == "" {
			return
		}

		if m.Headers == nil {
			m.Headers = make(map[string]string)
		}

		m.Headers[key] = value
	}
}
