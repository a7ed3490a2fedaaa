package syntax

// Walk traverses the tree rooted at node in depth-first order. It calls
// fn for each non-nil node; when fn returns false the node's children are
// skipped.
func Walk(node Node, fn func(Node) bool) {
	if isNilNode(node) || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *File:
		Walk(n.Body, fn)
	case *List:
		for _, c := range n.Items {
			Walk(c, fn)
		}
	case *AndOr:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Pipeline:
		for _, c := range n.Cmds {
			Walk(c, fn)
		}
	case *Background:
		Walk(n.X, fn)
	case *SimpleCommand:
		for _, a := range n.Assigns {
			Walk(a, fn)
		}

		walkWords(n.Args, fn)

		for _, r := range n.Redirs {
			Walk(r, fn)
		}
	case *DeclClause:
		walkWords(n.Opts, fn)

		for _, a := range n.Assigns {
			Walk(a, fn)
		}

		for _, r := range n.Redirs {
			Walk(r, fn)
		}
	case *IfClause:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)

		for _, e := range n.Elifs {
			Walk(e, fn)
		}

		Walk(n.Else, fn)
	case *Elif:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
	case *WhileClause:
		Walk(n.Cond, fn)
		Walk(n.Body, fn)
	case *ForClause:
		walkWords(n.Items, fn)
		Walk(n.Body, fn)
	case *ArithForClause:
		Walk(n.Init, fn)
		Walk(n.Cond, fn)
		Walk(n.Post, fn)
		Walk(n.Body, fn)
	case *SelectClause:
		walkWords(n.Items, fn)
		Walk(n.Body, fn)
	case *CaseClause:
		Walk(n.Word, fn)

		for _, it := range n.Items {
			Walk(it, fn)
		}
	case *CaseItem:
		walkWords(n.Patterns, fn)
		Walk(n.Body, fn)
	case *FuncDecl:
		Walk(n.Body, fn)
	case *Subshell:
		Walk(n.Body, fn)
	case *Group:
		Walk(n.Body, fn)
	case *ArithCmd:
		Walk(n.X, fn)
	case *TestClause:
		Walk(n.X, fn)
	case *Redirected:
		Walk(n.X, fn)

		for _, r := range n.Redirs {
			Walk(r, fn)
		}
	case *Redirect:
		Walk(n.Word, fn)
		Walk(n.Hdoc, fn)
	case *HereDoc:
		Walk(n.Body, fn)
	case *Assignment:
		Walk(n.Index, fn)
		Walk(n.Value, fn)
		Walk(n.Array, fn)
	case *ArrayExpr:
		walkWords(n.Elems, fn)
	case *Word:
		for _, p := range n.Parts {
			Walk(p, fn)
		}
	case *DblQuoted:
		for _, p := range n.Parts {
			Walk(p, fn)
		}
	case *ParamExp:
		Walk(n.Index, fn)
		Walk(n.Arg, fn)
		Walk(n.Repl, fn)
	case *CmdSubst:
		Walk(n.Body, fn)
	case *ArithExp:
		Walk(n.X, fn)
	case *BraceExp:
		walkWords(n.Elems, fn)
	case *ProcSubst:
		Walk(n.Body, fn)
	case *ArithWord:
		Walk(n.Word, fn)
	case *ArithBinary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *ArithUnary:
		Walk(n.X, fn)
	case *ArithParen:
		Walk(n.X, fn)
	case *ArithTernary:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *TestBinary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *TestUnary:
		Walk(n.X, fn)
	case *TestParen:
		Walk(n.X, fn)
	case *TestWord:
		Walk(n.Word, fn)
	}
}

func walkWords(ws []*Word, fn func(Node) bool) {
	for _, w := range ws {
		Walk(w, fn)
	}
}

// isNilNode reports whether node is nil or a typed nil pointer.
func isNilNode(node Node) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *List:
		return n == nil
	case *Word:
		return n == nil
	case *HereDoc:
		return n == nil
	case *ArrayExpr:
		return n == nil
	case *File:
		return n == nil
	}

	return false
}
