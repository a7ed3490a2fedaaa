package resolve

import (
	"cmp"
	"slices"
)

// RequestKind names the question a [Request] asks.
type RequestKind string

const (
	// RequestClassify asks whether a file is embedded or read at run time.
	RequestClassify RequestKind = "classify"
	// RequestPath asks how to treat a path computed at run time.
	RequestPath RequestKind = "path"
	// RequestBinary asks whether an external program is bundled or
	// required on the target system.
	RequestBinary RequestKind = "binary"
)

// Choices offered by requests.
const (
	ChoiceEmbed   = "embed"
	ChoiceRuntime = "runtime"
	ChoiceBundle  = "bundle"
	ChoiceSystem  = "system"
)

// Request is a question for the decision maker outside the core. Default is
// applied when no decision answers it.
type Request struct {
	Kind    RequestKind `yaml:"kind"`
	Subject string      `yaml:"subject"`
	Options []string    `yaml:"options"`
	Default string      `yaml:"default"`
	// Reason explains why the resolver could not decide on its own.
	Reason string `yaml:"reason,omitempty"`
}

// Decision answers a [Request].
type Decision struct {
	Kind    RequestKind `yaml:"kind"    validate:"required,oneof=classify path binary"`
	Subject string      `yaml:"subject" validate:"required"`
	Choice  string      `yaml:"choice"  validate:"required"`
}

// Decisions is a batch of pre-supplied answers, keyed by kind and subject.
// When a batch holds several answers to one request the last one wins.
type Decisions []Decision

// Lookup returns the decision for (kind, subject).
func (d Decisions) Lookup(kind RequestKind, subject string) (Decision, bool) {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i].Kind == kind && d[i].Subject == subject {
			return d[i], true
		}
	}

	return Decision{}, false
}

// Defaults answers every request with its default choice.
func Defaults(reqs []Request) Decisions {
	out := make(Decisions, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Decision{Kind: r.Kind, Subject: r.Subject, Choice: r.Default})
	}

	return out
}

// answer returns the choice for r and whether a supplied decision was
// rejected because it is not one of r's options.
func (d Decisions) answer(r Request) (choice string, rejected *Decision) {
	dec, ok := d.Lookup(r.Kind, r.Subject)
	if !ok {
		return r.Default, nil
	}

	if !slices.Contains(r.Options, dec.Choice) {
		return r.Default, &dec
	}

	return dec.Choice, nil
}

func sortRequests(reqs []Request) {
	slices.SortFunc(reqs, func(a, b Request) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Subject, b.Subject))
	})
}
