package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/ardnew/shgo/resolve"
)

// decisionFile is the layout of a file answering resolution requests.
type decisionFile struct {
	Decisions resolve.Decisions `yaml:"decisions" validate:"dive"`
}

// LoadDecisions reads a decision batch. An empty path yields no decisions.
func LoadDecisions(fs afero.Fs, path string) (resolve.Decisions, error) {
	if path == "" {
		return nil, nil
	}

	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, ErrDecisions.Wrap(err).With(slog.String("file", path))
	}

	var f decisionFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, ErrDecisions.Wrap(err).With(slog.String("file", path))
	}

	if err := validate().Struct(f); err != nil {
		return nil, ErrDecisions.Wrap(err).With(slog.String("file", path))
	}

	return f.Decisions, nil
}

// WriteRequests writes reqs as a decision file answered with each default.
// A comment on every choice lists the alternatives and the reason the
// resolver asked, so the file can be edited and passed back.
func WriteRequests(w io.Writer, reqs []resolve.Request) error {
	f := decisionFile{Decisions: resolve.Defaults(reqs)}
	if f.Decisions == nil {
		f.Decisions = resolve.Decisions{}
	}

	comments := yaml.CommentMap{}

	for i, r := range reqs {
		text := " one of: " + strings.Join(r.Options, ", ")
		if r.Reason != "" {
			text += " (" + r.Reason + ")"
		}

		comments[fmt.Sprintf("$.decisions[%d].choice", i)] = []*yaml.Comment{yaml.LineComment(text)}
	}

	b, err := yaml.MarshalWithOptions(f, yaml.WithComment(comments))
	if err != nil {
		return ErrOutput.Wrap(err)
	}

	_, err = w.Write(b)

	return err
}
