package syntax

import (
	"cmp"
	"slices"
	"strconv"
)

// Binding is the visibility of a variable.
type Binding int

const (
	Global Binding = iota
	Local
	Exported
)

func (b Binding) String() string {
	switch b {
	case Local:
		return "local"
	case Exported:
		return "exported"
	}

	return "global"
}

// Variable is a name assigned or declared somewhere in a unit.
type Variable struct {
	Name       string
	Scope      Binding
	ReadOnly   bool
	DeclaredAt Pos
}

// Function is a function defined in a unit. Params lists the positional
// parameters its body references ("1", "2", "@", "#" ...), in order.
type Function struct {
	Name       string
	Params     []string
	Body       Command
	Scope      *Scope
	DeclaredAt Pos
}

// Scope is one level of the symbol table. The root scope holds globals and
// every function; each function body gets a child scope for its locals.
type Scope struct {
	Parent   *Scope
	Func     *Function
	Vars     map[string]*Variable
	Funcs    map[string]*Function
	Children []*Scope
}

// NewScope returns an empty scope nested in parent, which may be nil.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		Parent: parent,
		Vars:   make(map[string]*Variable),
		Funcs:  make(map[string]*Function),
	}

	if parent != nil {
		parent.Children = append(parent.Children, s)
	}

	return s
}

// Root returns the outermost scope.
func (s *Scope) Root() *Scope {
	for s.Parent != nil {
		s = s.Parent
	}

	return s
}

// Lookup finds name in s or its parents. Inner declarations shadow outer
// ones.
func (s *Scope) Lookup(name string) (*Variable, bool) {
	for ; s != nil; s = s.Parent {
		if v, ok := s.Vars[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// LookupFunc finds the function name.
func (s *Scope) LookupFunc(name string) (*Function, bool) {
	for ; s != nil; s = s.Parent {
		if f, ok := s.Funcs[name]; ok {
			return f, true
		}
	}

	return nil, false
}

// Declare records name in s with binding b, keeping the first declaration
// position. Exporting an existing variable upgrades its binding.
func (s *Scope) Declare(name string, b Binding, pos Pos) *Variable {
	if v, ok := s.Vars[name]; ok {
		if b == Exported {
			v.Scope = Exported
		}

		return v
	}

	v := &Variable{Name: name, Scope: b, DeclaredAt: pos}
	s.Vars[name] = v

	return v
}

// Names returns the variable names declared in s, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.Vars))
	for n := range s.Vars {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// BuildSymbols builds the symbol table of a parsed unit.
func BuildSymbols(body *List) *Scope {
	root := NewScope(nil)
	if body != nil {
		collect(root, body)
	}

	return root
}

// collect records the symbols under node into s. A plain assignment inside
// a function binds the nearest existing declaration, or a global.
func collect(s *Scope, node Node) {
	Walk(node, func(n Node) bool {
		switch n := n.(type) {
		case *FuncDecl:
			fn := &Function{Name: n.Name, Body: n.Body, DeclaredAt: n.Position}
			s.Root().Funcs[n.Name] = fn
			fn.Scope = NewScope(s)
			fn.Scope.Func = fn

			collect(fn.Scope, n.Body)

			return false

		case *SimpleCommand:
			for _, a := range n.Assigns {
				assign(s, a.Name, a.NamePos)
			}

			readNames(s, n)

		case *DeclClause:
			declare(s, n)

			for _, a := range n.Assigns {
				Walk(a, func(n Node) bool { return paramRefs(s, n) })
			}

			return false

		case *ForClause:
			assign(s, n.Name, n.NamePos)
		case *SelectClause:
			assign(s, n.Name, n.NamePos)
		case *ArithBinary:
			if n.Op.IsAssign() {
				if w, ok := n.X.(*ArithWord); ok {
					if name, ok := w.Word.Lit(); ok && IsName(name) {
						assign(s, name, w.Pos())
					}
				}
			}
		}

		return paramRefs(s, n)
	})
}

func assign(s *Scope, name string, pos Pos) {
	if _, ok := s.Lookup(name); ok {
		return
	}

	s.Root().Declare(name, Global, pos)
}

func declare(s *Scope, dc *DeclClause) {
	inFunc := s.Func != nil

	var (
		exported = dc.Variant == "export"
		readOnly = dc.Variant == "readonly"
		global   bool
	)

	for _, o := range dc.Opts {
		lit, _ := o.Lit()
		if len(lit) < 2 || lit[0] != '-' {
			continue
		}

		for _, c := range lit[1:] {
			switch c {
			case 'x':
				exported = true
			case 'r':
				readOnly = true
			case 'g':
				global = true
			}
		}
	}

	target, b := s.Root(), Global

	switch {
	case dc.Variant == "local":
		target, b = s, Local
	case (dc.Variant == "declare" || dc.Variant == "typeset") && inFunc && !global:
		target, b = s, Local
	}

	if exported && b == Global {
		b = Exported
	}

	for _, a := range dc.Assigns {
		var v *Variable

		if b == Local {
			v = target.Declare(a.Name, b, a.NamePos)
			if exported {
				v.Scope = Exported
			}
		} else if existing, ok := s.Lookup(a.Name); ok && (dc.Variant == "export" || dc.Variant == "readonly") {
			v = existing
			if exported {
				v.Scope = Exported
			}
		} else {
			v = target.Declare(a.Name, b, a.NamePos)
		}

		if readOnly {
			v.ReadOnly = true
		}
	}
}

// readNames declares the variables named by "read" and "getopts".
func readNames(s *Scope, sc *SimpleCommand) {
	if len(sc.Args) == 0 {
		return
	}

	name, _ := sc.Args[0].Lit()

	args := sc.Args[1:]

	switch name {
	case "read":
	case "getopts":
		if len(args) < 2 {
			return
		}

		args = args[1:2]
	default:
		return
	}

	for i := 0; i < len(args); i++ {
		lit, ok := args[i].Lit()
		if !ok {
			continue
		}

		switch {
		case name == "read" && (lit == "-p" || lit == "-d" || lit == "-t" || lit == "-n" || lit == "-u" || lit == "-a"):
			if lit == "-a" && i+1 < len(args) {
				if arr, ok := args[i+1].Lit(); ok && IsName(arr) {
					assign(s, arr, args[i+1].Pos())
				}
			}

			i++
		case len(lit) > 0 && lit[0] == '-':
		case IsName(lit):
			assign(s, lit, args[i].Pos())
		}
	}
}

// paramRefs records positional parameter references inside functions.
func paramRefs(s *Scope, n Node) bool {
	pe, ok := n.(*ParamExp)
	if !ok {
		return true
	}

	var fn *Function

	for sc := s; sc != nil; sc = sc.Parent {
		if sc.Func != nil {
			fn = sc.Func

			break
		}
	}

	if fn == nil || !isPositional(pe.Name) {
		return true
	}

	if !slices.Contains(fn.Params, pe.Name) {
		fn.Params = append(fn.Params, pe.Name)
		slices.SortStableFunc(fn.Params, comparePositional)
	}

	return true
}

func isPositional(name string) bool {
	switch name {
	case "@", "*", "#":
		return true
	}

	n, err := strconv.Atoi(name)

	return err == nil && n > 0
}

// comparePositional orders numbered parameters numerically before the
// special ones.
func comparePositional(a, b string) int {
	na, ea := strconv.Atoi(a)
	nb, eb := strconv.Atoi(b)

	switch {
	case ea == nil && eb == nil:
		return cmp.Compare(na, nb)
	case ea == nil:
		return -1
	case eb == nil:
		return 1
	}

	return cmp.Compare(a, b)
}
