package lower

import (
	"strings"

	"github.com/ardnew/shgo/diag"
	"github.com/ardnew/shgo/resolve"
	"github.com/ardnew/shgo/shell"
	"github.com/ardnew/shgo/syntax"
)

// partMode is the quoting context of word parts.
type partMode int

const (
	modeUnquoted partMode = iota
	modeDouble
	modeHeredoc
)

func (u *unit) words(ws []*syntax.Word) []*shell.Word {
	if len(ws) == 0 {
		return nil
	}

	out := make([]*shell.Word, len(ws))
	for i, w := range ws {
		out[i] = u.word(w)
	}

	return out
}

// word lowers a word in command position, binding the file reference the
// resolver recorded for it.
func (u *unit) word(w *syntax.Word) *shell.Word {
	if w == nil {
		return nil
	}

	x := u.plain(w)

	ref, n, ok := u.ref(w)
	if !ok {
		return x
	}

	if u.embedded(ref, n) {
		return &shell.Word{Parts: []shell.Part{&shell.EmbedPath{Key: n.Path}}}
	}

	rp := &shell.RuntimePath{Word: x}
	if ref.Dynamic || n.Class == resolve.ContextDependent {
		rp.Expr = ref.Expr
	}

	return &shell.Word{Parts: []shell.Part{rp}}
}

// embedded reports whether the reference reads content captured at
// generation time.
func (u *unit) embedded(ref *resolve.SourceFileRef, n *resolve.Node) bool {
	if !ref.Static() || ref.Usage.Sourced || ref.Usage.Modified() || n.Choice != resolve.Embed {
		return false
	}

	_, ok := u.g.embeds[n.Path]

	return ok
}

// plain lowers a word without file reference binding. A leading unquoted
// "~" or "~user" becomes a tilde expansion.
func (u *unit) plain(w *syntax.Word) *shell.Word {
	if w == nil {
		return nil
	}

	parts := w.Parts

	var head []shell.Part

	if len(parts) > 0 {
		if lit, ok := parts[0].(*syntax.Lit); ok && strings.HasPrefix(lit.Value, "~") {
			user, rest := tilde(lit.Value)
			if user != "" || rest != lit.Value {
				head = append(head, &shell.Tilde{User: user})
				if rest != "" {
					head = append(head, litParts(rest)...)
				}

				parts = parts[1:]
			}
		}
	}

	return &shell.Word{Parts: append(head, u.parts(parts, modeUnquoted)...)}
}

// tilde splits a literal starting with "~" into the login name and the
// remaining text. rest equals s when the prefix is not a tilde expansion.
func tilde(s string) (string, string) {
	end := strings.IndexByte(s, '/')
	if end < 0 {
		end = len(s)
	}

	user := s[1:end]

	for i := 0; i < len(user); i++ {
		c := user[i]
		if !(c == '_' || c == '-' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return "", s
		}
	}

	return user, s[end:]
}

func (u *unit) parts(ps []syntax.WordPart, mode partMode) []shell.Part {
	out := make([]shell.Part, 0, len(ps))

	for _, p := range ps {
		switch p := p.(type) {
		case *syntax.Lit:
			switch mode {
			case modeDouble:
				out = append(out, &shell.Lit{Text: syntax.UnescapeDouble(p.Value), Quoted: true})
			case modeHeredoc:
				out = append(out, &shell.Lit{Text: unescapeHeredoc(p.Value), Quoted: true})
			default:
				out = append(out, litParts(p.Value)...)
			}
		case *syntax.SglQuoted:
			text := p.Value
			if p.Dollar {
				text = syntax.UnescapeAnsiC(text)
			}

			out = append(out, &shell.Lit{Text: text, Quoted: true})
		case *syntax.DblQuoted:
			out = append(out, &shell.Quoted{Parts: u.parts(p.Parts, modeDouble)})
		case *syntax.ParamExp:
			out = append(out, u.param(p))
		case *syntax.CmdSubst:
			out = append(out, &shell.Subst{Body: u.list(p.Body)})
		case *syntax.ArithExp:
			out = append(out, &shell.Arith{X: u.arith(p.X)})
		case *syntax.BraceExp:
			b := &shell.Brace{Seq: p.Sequence, Elems: make([]*shell.Word, len(p.Elems))}
			for i, e := range p.Elems {
				b.Elems[i] = &shell.Word{Parts: u.parts(e.Parts, modeUnquoted)}
			}

			out = append(out, b)
		case *syntax.ProcSubst:
			u.errorf(diag.UnsupportedFeature, p.Pos(),
				"process substitution %s(...) is not supported", p.Op)
		default:
			u.errorf(diag.GenerationError, p.Pos(), "cannot lower word part %T", p)
		}
	}

	return out
}

// litParts splits unquoted literal text at backslash escapes: an escaped
// character is quoted text and an escaped newline disappears.
func litParts(s string) []shell.Part {
	if strings.IndexByte(s, '\\') < 0 {
		return []shell.Part{&shell.Lit{Text: s}}
	}

	var (
		out []shell.Part
		sb  strings.Builder
	)

	flush := func() {
		if sb.Len() > 0 {
			out = append(out, &shell.Lit{Text: sb.String()})
			sb.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])

			continue
		}

		i++
		if s[i] == '\n' {
			continue
		}

		flush()
		out = append(out, &shell.Lit{Text: s[i : i+1], Quoted: true})
	}

	flush()

	return out
}

// unescapeHeredoc removes the escapes special in an unquoted here-document
// body: \$ \` \\ and backslash-newline.
func unescapeHeredoc(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '$', '`', '\\':
				i++
			case '\n':
				i++

				continue
			}
		}

		sb.WriteByte(s[i])
	}

	return sb.String()
}

func (u *unit) param(p *syntax.ParamExp) *shell.Param {
	x := &shell.Param{
		Name:     p.Name,
		Length:   p.Length,
		Indirect: p.Indirect,
		Names:    p.Names,
		Op:       p.Op,
	}

	if p.Index != nil {
		x.Index = &shell.Word{Parts: u.parts(p.Index.Parts, modeUnquoted)}
	}

	if p.Arg != nil {
		x.Arg = u.plain(p.Arg)
	}

	if p.Repl != nil {
		x.Repl = u.plain(p.Repl)
	}

	return x
}
