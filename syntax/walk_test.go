package syntax

import (
	"testing"
)

func TestWalk_VisitsNestedNodes(t *testing.T) {
	f := mustParse(t, `f() { echo "$(cat $file)" >"${out:-log}"; }; (( n += 1 ))`)

	var params []string

	counts := map[string]int{}

	Walk(f, func(n Node) bool {
		switch n := n.(type) {
		case *ParamExp:
			params = append(params, n.Name)
		case *CmdSubst:
			counts["subst"]++
		case *Redirect:
			counts["redirect"]++
		case *ArithBinary:
			counts["arith"]++
		}

		return true
	})

	if len(params) != 2 || params[0] != "file" || params[1] != "out" {
		t.Errorf("expected [file out], got %v", params)
	}

	if counts["subst"] != 1 || counts["redirect"] != 1 || counts["arith"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestWalk_Prune(t *testing.T) {
	f := mustParse(t, "f() { inner; }; outer")

	var names []string

	Walk(f.Body, func(n Node) bool {
		if _, ok := n.(*FuncDecl); ok {
			return false
		}

		if sc, ok := n.(*SimpleCommand); ok {
			s, _ := sc.Args[0].Lit()
			names = append(names, s)
		}

		return true
	})

	if len(names) != 1 || names[0] != "outer" {
		t.Errorf("expected only outer, got %v", names)
	}
}
