package shell

import (
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Var is a shell variable. An indexed array keeps its elements in List.
type Var struct {
	Value    string
	List     []string
	Array    bool
	Exported bool
	ReadOnly bool
	Integer  bool
}

// String returns the scalar value: the first element of an array.
func (v *Var) String() string {
	if v.Array {
		if len(v.List) == 0 {
			return ""
		}

		return v.List[0]
	}

	return v.Value
}

// Values returns the elements of an array, or the scalar as one element.
func (v *Var) Values() []string {
	if v.Array {
		return v.List
	}

	return []string{v.Value}
}

func (v *Var) clone() *Var {
	c := *v
	c.List = slices.Clone(v.List)

	return &c
}

// Env is a chain of variable scopes. The outermost scope holds globals;
// each function call pushes a scope for its locals. Lookups are dynamic:
// a function sees the locals of its callers.
type Env struct {
	parent *Env
	vars   map[string]*Var
}

// NewEnv returns a global scope holding environ ("KEY=VALUE" entries) as
// exported variables.
func NewEnv(environ []string) *Env {
	e := &Env{vars: make(map[string]*Var, len(environ))}

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !validName(k) {
			continue
		}

		e.vars[k] = &Var{Value: v, Exported: true}
	}

	return e
}

// Push returns a new scope nested in e.
func (e *Env) Push() *Env {
	return &Env{parent: e, vars: make(map[string]*Var)}
}

// Pop returns the scope enclosing e.
func (e *Env) Pop() *Env {
	if e.parent == nil {
		return e
	}

	return e.parent
}

// Global reports whether e is the outermost scope.
func (e *Env) Global() bool { return e.parent == nil }

func (e *Env) root() *Env {
	for e.parent != nil {
		e = e.parent
	}

	return e
}

func (e *Env) find(name string) (*Env, *Var) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return s, v
		}
	}

	return nil, nil
}

// Get returns the variable name.
func (e *Env) Get(name string) (*Var, bool) {
	_, v := e.find(name)

	return v, v != nil
}

// Value returns the scalar value of name and whether it is set.
func (e *Env) Value(name string) (string, bool) {
	v, ok := e.Get(name)
	if !ok {
		return "", false
	}

	return v.String(), true
}

// Set assigns a scalar to name in the nearest scope declaring it, or in
// the global scope.
func (e *Env) Set(name, value string) error {
	_, v := e.find(name)
	if v == nil {
		e.root().vars[name] = &Var{Value: value}

		return nil
	}

	if v.ReadOnly {
		return ErrReadOnly.With(slog.String("name", name))
	}

	v.Value, v.List, v.Array = value, nil, false

	return nil
}

// SetIndex assigns element i of array name, growing it as needed.
func (e *Env) SetIndex(name string, i int, value string) error {
	_, v := e.find(name)
	if v == nil {
		v = &Var{Array: true}
		e.root().vars[name] = v
	}

	if v.ReadOnly {
		return ErrReadOnly.With(slog.String("name", name))
	}

	if !v.Array {
		v.Array = true
		v.List = []string{v.Value}
		v.Value = ""
	}

	if i < 0 {
		i += len(v.List)
		if i < 0 {
			return ErrBadSubst.With(slog.String("name", name), slog.Int("index", i))
		}
	}

	for len(v.List) <= i {
		v.List = append(v.List, "")
	}

	v.List[i] = value

	return nil
}

// SetArray replaces name with an indexed array.
func (e *Env) SetArray(name string, values []string) error {
	_, v := e.find(name)
	if v == nil {
		v = &Var{}
		e.root().vars[name] = v
	}

	if v.ReadOnly {
		return ErrReadOnly.With(slog.String("name", name))
	}

	v.Array, v.List, v.Value = true, slices.Clone(values), ""

	return nil
}

// Local declares name in the current scope. An existing local is returned
// unchanged.
func (e *Env) Local(name string) *Var {
	if v, ok := e.vars[name]; ok {
		return v
	}

	v := &Var{}
	if _, outer := e.find(name); outer != nil {
		v.Exported = outer.Exported
	}

	e.vars[name] = v

	return v
}

// Declare returns the variable name, creating it in the global scope if it
// does not exist.
func (e *Env) Declare(name string) *Var {
	if _, v := e.find(name); v != nil {
		return v
	}

	v := &Var{}
	e.root().vars[name] = v

	return v
}

// Unset removes name from the nearest scope declaring it.
func (e *Env) Unset(name string) error {
	s, v := e.find(name)
	if v == nil {
		return nil
	}

	if v.ReadOnly {
		return ErrReadOnly.With(slog.String("name", name))
	}

	delete(s.vars, name)

	return nil
}

// Export marks name exported, creating it empty if unset.
func (e *Env) Export(name string, on bool) {
	e.Declare(name).Exported = on
}

// Names returns every visible variable name in order.
func (e *Env) Names() []string {
	seen := make(map[string]bool)

	for s := e; s != nil; s = s.parent {
		for k := range s.vars {
			seen[k] = true
		}
	}

	return slices.Sorted(maps.Keys(seen))
}

// Environ returns the exported variables as "KEY=VALUE" entries, with
// assigns ("KEY=VALUE" prefix assignments of a command) applied on top.
func (e *Env) Environ(assigns ...string) []string {
	m := make(map[string]string)

	for _, k := range e.Names() {
		if v, _ := e.Get(k); v.Exported {
			m[k] = v.String()
		}
	}

	for _, kv := range assigns {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}

	out := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, k+"="+m[k])
	}

	return out
}

// Clone returns a deep copy of the scope chain.
func (e *Env) Clone() *Env {
	if e == nil {
		return nil
	}

	c := &Env{parent: e.parent.Clone(), vars: make(map[string]*Var, len(e.vars))}
	for k, v := range e.vars {
		c.vars[k] = v.clone()
	}

	return c
}

func validName(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}

// atoi parses a decimal integer, treating anything else as zero.
func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))

	return n
}
