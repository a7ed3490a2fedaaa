package syntax

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/ardnew/shgo/diag"
)

// Fields of these types are left out of dumps.
var (
	posType      = reflect.TypeFor[Pos]()
	scopeType    = reflect.TypeFor[*Scope]()
	diagListType = reflect.TypeFor[diag.List]()
)

// Dump writes an indented description of the tree rooted at node. Positions
// are omitted, so two trees parsed from differently formatted text that
// mean the same thing dump identically.
func Dump(w io.Writer, node Node) error {
	d := &dumper{w: w}
	d.value(reflect.ValueOf(node), 0)

	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) printf(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}

	_, d.err = fmt.Fprintf(d.w, strings.Repeat("  ", depth)+format+"\n", args...)
}

func (d *dumper) value(v reflect.Value, depth int) {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			d.printf(depth, "nil")

			return
		}

		d.value(v.Elem(), depth)

	case reflect.Struct:
		t := v.Type()
		d.printf(depth, "%s", t.Name())

		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() || f.Type == posType || f.Type == scopeType || f.Type == diagListType {
				continue
			}

			fv := v.Field(i)
			if fv.IsZero() {
				continue
			}

			switch fv.Kind() {
			case reflect.Interface, reflect.Pointer, reflect.Struct, reflect.Slice, reflect.Map:
				d.printf(depth+1, "%s:", f.Name)
				d.value(fv, depth+2)
			default:
				d.printf(depth+1, "%s: %s", f.Name, scalar(fv))
			}
		}

	case reflect.Slice:
		for i := range v.Len() {
			d.value(v.Index(i), depth)
		}

	case reflect.Map:
		keys := v.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})

		for _, k := range keys {
			d.printf(depth, "%v: %v", k.Interface(), v.MapIndex(k).Interface())
		}

	default:
		d.printf(depth, "%s", scalar(v))
	}
}

func scalar(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return fmt.Sprintf("%q", v.String())
	}

	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	return fmt.Sprint(v.Interface())
}
