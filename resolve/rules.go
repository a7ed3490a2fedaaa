package resolve

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule maps a predicate over a [Subject] to a classification.
type Rule struct {
	Name     string
	Category Category
	Class    Class
	Match    func(*Subject) bool
}

// RuleSpec is a user-defined rule. When is an expr-lang boolean expression
// over the fields of [Subject], for example:
//
//	path startsWith "/opt/assets/" && size < 65536
type RuleSpec struct {
	Name     string   `yaml:"name"     validate:"required"`
	Category Category `yaml:"category"`
	When     string   `yaml:"when"     validate:"required"`
	Class    Class    `yaml:"class"`
}

// Compile checks the expression and returns the rule it describes.
func (s RuleSpec) Compile() (Rule, error) {
	if s.Class != Embed && s.Class != Runtime {
		return Rule{}, ErrRule.With(
			slog.String("rule", s.Name),
			slog.String("class", s.Class.String()),
			slog.String("issue", "class must be embed or runtime"),
		)
	}

	program, err := expr.Compile(s.When, expr.Env(Subject{}), expr.AsBool())
	if err != nil {
		return Rule{}, ErrRule.Wrap(err).With(slog.String("rule", s.Name))
	}

	return Rule{
		Name:     s.Name,
		Category: s.Category,
		Class:    s.Class,
		Match:    exprMatcher(program),
	}, nil
}

func exprMatcher(program *vm.Program) func(*Subject) bool {
	return func(s *Subject) bool {
		out, err := expr.Run(program, *s)
		if err != nil {
			return false
		}

		ok, _ := out.(bool)

		return ok
	}
}

var (
	systemPathRe  = regexp.MustCompile(`^(/proc/|/sys/|/dev/|/tmp/|/var/log/|/run/)`)
	cachePathRe   = regexp.MustCompile(`(\.cache/|/cache/|\.local/tmp/)`)
	processFileRe = regexp.MustCompile(`\.(pid|lock|sock)$`)
	sensitiveRe   = regexp.MustCompile(`\.(key|pem|password|secret|token|credentials)$`)
	configExtRe   = regexp.MustCompile(`\.(conf|config|cfg|ini|toml|yaml|yml|json)$`)
	docNameRe     = regexp.MustCompile(`^(README|LICENSE|COPYING|AUTHORS|CHANGELOG|TODO|INSTALL)`)
	dataExtRe     = regexp.MustCompile(`\.(json|yaml|yml|toml|xml|csv|tsv)$`)
)

// DefaultRules returns the built-in rule set for cfg.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		{"system-path", CategorySystem, Runtime, func(s *Subject) bool {
			return systemPathRe.MatchString(s.Path)
		}},
		{"cache-path", CategorySystem, Runtime, func(s *Subject) bool {
			return cachePathRe.MatchString(s.Path)
		}},
		{"process-file", CategorySystem, Runtime, func(s *Subject) bool {
			return processFileRe.MatchString(s.Path)
		}},
		{"written", CategorySystem, Runtime, func(s *Subject) bool {
			return s.Usage.Modified()
		}},
		{"monitored", CategorySystem, Runtime, func(s *Subject) bool {
			return s.Usage.Monitored
		}},
		{"missing", CategorySystem, Runtime, func(s *Subject) bool {
			return !s.Exists
		}},
		{"sensitive", CategorySensitive, Runtime, func(s *Subject) bool {
			return sensitiveRe.MatchString(s.Path)
		}},
		{"oversize", CategorySize, Runtime, func(s *Subject) bool {
			return s.Size > cfg.MaxEmbedSize
		}},
		{"local-config", CategoryStatic, Embed, func(s *Subject) bool {
			return s.Local && configExtRe.MatchString(s.Path)
		}},
		{"documentation", CategoryStatic, Embed, func(s *Subject) bool {
			return docNameRe.MatchString(s.Base)
		}},
		{"small-data", CategoryStatic, Embed, func(s *Subject) bool {
			return dataExtRe.MatchString(s.Path) && s.Size < cfg.SmallDataSize
		}},
		{"markdown", CategoryStatic, Embed, func(s *Subject) bool {
			return s.Ext == ".md"
		}},
		{"template", CategoryStatic, Embed, func(s *Subject) bool {
			return strings.Contains(strings.ToLower(s.Base), "template") ||
				s.Ext == ".tmpl" || s.Ext == ".tpl"
		}},
		{"local-source", CategoryStatic, Embed, func(s *Subject) bool {
			return s.Usage.Sourced && s.Local
		}},
		{"system-config", CategoryContext, Runtime, func(s *Subject) bool {
			return strings.HasPrefix(s.Path, "/etc/") && !s.Local
		}},
		{"existence-guarded", CategoryContext, Runtime, func(s *Subject) bool {
			return s.Usage.Guarded
		}},
		{"read-in-loop", CategoryContext, Runtime, func(s *Subject) bool {
			return s.Usage.InLoop && s.Usage.Reads > 0
		}},
	}
}

// Verdict is the outcome of classifying one subject.
type Verdict struct {
	Class Class
	// Rule names the rule that decided Class; empty when no rule matched.
	Rule string
	// Overruled names the Embed rule that lost to Rule under fail-closed
	// evaluation.
	Overruled string
}

// Classifier evaluates an ordered rule list. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	rules      []Rule
	failClosed bool
}

// NewClassifier compiles cfg.Rules and orders them with the built-in rules
// by category precedence. Within a category, custom rules come first.
func NewClassifier(cfg Config) (*Classifier, error) {
	rules := make([]Rule, 0, len(cfg.Rules)+16)

	for _, spec := range cfg.Rules {
		r, err := spec.Compile()
		if err != nil {
			return nil, err
		}

		rules = append(rules, r)
	}

	rules = append(rules, DefaultRules(cfg)...)
	rank := ranks(cfg.Precedence)

	slices.SortStableFunc(rules, func(a, b Rule) int {
		return rank[a.Category] - rank[b.Category]
	})

	return &Classifier{rules: rules, failClosed: cfg.FailClosed}, nil
}

// Rules returns the rules in evaluation order.
func (c *Classifier) Rules() []Rule { return slices.Clone(c.rules) }

// Classify returns the verdict of the first matching rule. With fail-closed
// evaluation an Embed verdict yields to any later matching Runtime rule.
func (c *Classifier) Classify(s *Subject) Verdict {
	for i, r := range c.rules {
		if !r.Match(s) {
			continue
		}

		v := Verdict{Class: r.Class, Rule: r.Name}
		if r.Class != Embed || !c.failClosed {
			return v
		}

		for _, later := range c.rules[i+1:] {
			if later.Class == Runtime && later.Match(s) {
				return Verdict{Class: Runtime, Rule: later.Name, Overruled: r.Name}
			}
		}

		return v
	}

	return Verdict{Class: Unresolved}
}
