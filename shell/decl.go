package shell

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// declFlags are the attribute options of export, local, readonly, declare
// and typeset. A "+" option clears the attribute.
type declFlags struct {
	export, unexport   bool
	readonly           bool
	integer, uninteger bool
	array              bool
	print              bool
	funcs, funcNames   bool
	global             bool
}

func parseDeclFlags(variant Builtin, words []string) (declFlags, []string, error) {
	var f declFlags

	switch variant {
	case BuiltinExport:
		f.export = true
	case BuiltinReadonly:
		f.readonly = true
	}

	for i, w := range words {
		if w == "--" {
			return f, words[i+1:], nil
		}

		if len(w) < 2 || (w[0] != '-' && w[0] != '+') {
			return f, words[i:], nil
		}

		on := w[0] == '-'

		for _, c := range w[1:] {
			switch c {
			case 'x':
				f.export, f.unexport = on, !on
			case 'n':
				if variant != BuiltinExport {
					return f, nil, fmt.Errorf("%c%c: invalid option", w[0], c)
				}

				f.export, f.unexport = false, true
			case 'r':
				f.readonly = f.readonly || on
			case 'i':
				f.integer, f.uninteger = on, !on
			case 'a':
				f.array = on
			case 'p':
				f.print = true
			case 'f':
				f.funcs = true
			case 'F':
				f.funcs, f.funcNames = true, true
			case 'g':
				f.global = true
			default:
				return f, nil, fmt.Errorf("%c%c: invalid option", w[0], c)
			}
		}
	}

	return f, nil, nil
}

// operand converts a "name=value" argument given at run time into an
// assignment of a literal value.
func operand(arg string) *Assign {
	name, value, ok := strings.Cut(arg, "=")

	a := &Assign{Name: name}

	if ok {
		a.Value = &Word{Parts: []Part{&Lit{Text: value, Quoted: true}}}

		if strings.HasSuffix(name, "+") {
			a.Name, a.Append = strings.TrimSuffix(name, "+"), true
		}
	}

	if i := strings.IndexByte(a.Name, '['); i > 0 && strings.HasSuffix(a.Name, "]") && ok {
		a.Index = &Word{Parts: []Part{&Lit{Text: a.Name[i+1 : len(a.Name)-1], Quoted: true}}}
		a.Name = a.Name[:i]
	}

	return a
}

// decl runs a declaration whose assignments were resolved at generation
// time.
func (s *Shell) decl(ctx context.Context, x *Decl) error {
	opts, err := s.fields(ctx, x.Opts...)
	if err != nil {
		return err
	}

	f, rest, err := parseDeclFlags(x.Variant, opts)
	if err != nil {
		s.usage(x.Variant.String(), err)

		return nil
	}

	assigns := make([]*Assign, 0, len(rest)+len(x.Assigns))
	for _, arg := range rest {
		assigns = append(assigns, operand(arg))
	}

	return s.declare(ctx, x.Variant, f, append(assigns, x.Assigns...))
}

// declArgs runs a declaration builtin invoked by a name computed at run
// time.
func (s *Shell) declArgs(ctx context.Context, b Builtin, args []string) error {
	f, rest, err := parseDeclFlags(b, args[1:])
	if err != nil {
		s.usage(args[0], err)

		return nil
	}

	assigns := make([]*Assign, len(rest))
	for i, arg := range rest {
		assigns[i] = operand(arg)
	}

	return s.declare(ctx, b, f, assigns)
}

func (s *Shell) declare(ctx context.Context, variant Builtin, f declFlags, assigns []*Assign) error {
	name := variant.String()

	if variant == BuiltinLocal && s.calls == 0 {
		s.errorf("local: can only be used in a function")
		s.status = 1

		return nil
	}

	s.status = 0

	if f.funcs {
		s.declFuncs(name, f, assigns)

		return nil
	}

	if f.print || len(assigns) == 0 {
		s.printDecl(name, variant, f, assigns)

		return nil
	}

	local := variant == BuiltinLocal ||
		((variant == BuiltinDeclare || variant == BuiltinTypeset) && s.calls > 0 && !f.global)

	for _, a := range assigns {
		if !validName(a.Name) {
			s.errorf("%s: `%s': not a valid identifier", name, a.Name)
			s.status = 1

			continue
		}

		var v *Var
		if local {
			v = s.env.Local(a.Name)
		} else {
			v = s.env.Declare(a.Name)
		}

		if f.integer {
			v.Integer = true
		} else if f.uninteger {
			v.Integer = false
		}

		if f.array && !v.Array {
			v.Array, v.List, v.Value = true, []string{v.Value}, ""

			if a.Value == nil && !a.IsArray {
				v.List = nil
			}
		}

		if a.Value != nil || a.IsArray || a.Index != nil {
			var scope *Env
			if local {
				scope = s.env
			}

			if err := s.assign(ctx, a, scope); err != nil {
				if !errors.Is(err, ErrReadOnly) {
					return err
				}

				s.errorf("%s: readonly variable", a.Name)
				s.status = 1

				continue
			}
		}

		switch {
		case f.export:
			v.Exported = true
		case f.unexport:
			v.Exported = false
		}

		if f.readonly {
			v.ReadOnly = true
		}
	}

	return nil
}

func (s *Shell) declFuncs(name string, f declFlags, assigns []*Assign) {
	names := make([]string, 0, len(assigns))
	for _, a := range assigns {
		names = append(names, a.Name)
	}

	if len(names) == 0 {
		names = slices.Sorted(maps.Keys(s.funcs))
	}

	for _, fn := range names {
		if _, ok := s.funcs[fn]; !ok {
			s.errorf("%s: %s: not a function", name, fn)
			s.status = 1

			continue
		}

		if f.print || f.funcNames || len(assigns) == 0 {
			fmt.Fprintf(s.io.out, "declare -f %s\n", fn)
		}
	}
}

// attrs returns the option letters describing v, "--" for none.
func attrs(v *Var) string {
	var sb strings.Builder

	if v.Array {
		sb.WriteByte('a')
	}

	if v.Integer {
		sb.WriteByte('i')
	}

	if v.ReadOnly {
		sb.WriteByte('r')
	}

	if v.Exported {
		sb.WriteByte('x')
	}

	if sb.Len() == 0 {
		return "--"
	}

	return "-" + sb.String()
}

// declString renders v as a declare command that recreates it.
func declString(name string, v *Var) string {
	if !v.Array {
		return fmt.Sprintf("declare %s %s=%s", attrs(v), name, quote(v.Value))
	}

	elems := make([]string, len(v.List))
	for i, e := range v.List {
		elems[i] = fmt.Sprintf("[%d]=%s", i, quote(e))
	}

	return fmt.Sprintf("declare %s %s=(%s)", attrs(v), name, strings.Join(elems, " "))
}

func (s *Shell) printDecl(name string, variant Builtin, f declFlags, assigns []*Assign) {
	if len(assigns) > 0 {
		for _, a := range assigns {
			v, ok := s.env.Get(a.Name)
			if !ok {
				s.errorf("%s: %s: not found", name, a.Name)
				s.status = 1

				continue
			}

			fmt.Fprintln(s.io.out, declString(a.Name, v))
		}

		return
	}

	for _, n := range s.env.Names() {
		v, _ := s.env.Get(n)

		switch {
		case variant == BuiltinExport && !v.Exported,
			variant == BuiltinReadonly && !v.ReadOnly,
			f.export && !v.Exported,
			f.readonly && !v.ReadOnly,
			f.integer && !v.Integer,
			f.array && !v.Array:
			continue
		}

		fmt.Fprintln(s.io.out, declString(n, v))
	}
}
