package syntax

import (
	"testing"

	"github.com/ardnew/shgo/diag"
)

type tokSummary struct {
	kind Kind
	text string
}

func summarize(toks []Token) []tokSummary {
	out := make([]tokSummary, len(toks))
	for i, t := range toks {
		out[i] = tokSummary{t.Kind, t.Text}
	}

	return out
}

func TestLex_Tokens(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []tokSummary
	}{
		{
			name: "pipeline with redirects",
			src:  `echo "a b" | grep -c x >out.txt 2>&1`,
			want: []tokSummary{
				{WORD, "echo"}, {WORD, `"a b"`}, {PIPE, "|"}, {WORD, "grep"},
				{WORD, "-c"}, {WORD, "x"}, {GREAT, ">"}, {WORD, "out.txt"},
				{IONUMBER, "2"}, {GREATAND, ">&"}, {WORD, "1"}, {EOF, ""},
			},
		},
		{
			name: "list operators",
			src:  "a && b || c; d &\n",
			want: []tokSummary{
				{WORD, "a"}, {AND, "&&"}, {WORD, "b"}, {OR, "||"}, {WORD, "c"},
				{SEMI, ";"}, {WORD, "d"}, {AMP, "&"}, {NEWLINE, "\n"}, {EOF, ""},
			},
		},
		{
			name: "nested expansions stay in one word",
			src:  `x=$(echo "$(date +%s) )" ${y:-}) z`,
			want: []tokSummary{
				{WORD, `x=$(echo "$(date +%s) )" ${y:-})`}, {WORD, "z"}, {EOF, ""},
			},
		},
		{
			name: "arithmetic command",
			src:  "(( i += 2 ))",
			want: []tokSummary{{ARITH, " i += 2 "}, {EOF, ""}},
		},
		{
			name: "comment",
			src:  "echo hi # trailing\n",
			want: []tokSummary{
				{WORD, "echo"}, {WORD, "hi"}, {COMMENT, "# trailing"}, {NEWLINE, "\n"}, {EOF, ""},
			},
		},
		{
			name: "case terminators",
			src:  "a) x;; b) y;& c) z;;&",
			want: []tokSummary{
				{WORD, "a"}, {RPAREN, ")"}, {WORD, "x"}, {DSEMI, ";;"},
				{WORD, "b"}, {RPAREN, ")"}, {WORD, "y"}, {SEMIAMP, ";&"},
				{WORD, "c"}, {RPAREN, ")"}, {WORD, "z"}, {DSEMIAMP, ";;&"}, {EOF, ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, diags := Lex([]byte(tt.src), Bash)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}

			got := summarize(toks)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.want), len(got), got)
			}

			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLex_KeywordsOnlyInCommandPosition(t *testing.T) {
	toks, _ := Lex([]byte("if true; then echo if fi; fi"), Bash)

	want := map[int]bool{0: true, 1: false, 3: true, 4: false, 5: false, 6: false, 8: true}
	for i, kw := range want {
		if toks[i].Keyword != kw {
			t.Errorf("token %d %q: expected keyword=%v", i, toks[i].Text, kw)
		}
	}
}

func TestLex_QuotedKeywordIsWord(t *testing.T) {
	toks, _ := Lex([]byte(`"if" x`), Bash)

	if toks[0].Keyword {
		t.Error("quoted reserved word flagged as keyword")
	}

	if !toks[0].Quoted {
		t.Error("expected Quoted on quoted word")
	}
}

func TestLex_Heredoc(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		body   string
		quoted bool
	}{
		{"plain", "cat <<EOF\nhello $USER\nEOF\necho done\n", "hello $USER\n", false},
		{"quoted delimiter", "cat <<'EOF'\nhello $USER\nEOF\necho done\n", "hello $USER\n", true},
		{"strip tabs", "cat <<-EOF\n\t\tindented\n\tEOF\necho done\n", "indented\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, diags := Lex([]byte(tt.src), Bash)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}

			// cat, <<, delim, newline, body
			if toks[4].Kind != HEREDOC {
				t.Fatalf("expected HEREDOC after newline, got %v", summarize(toks))
			}

			if toks[4].Text != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, toks[4].Text)
			}

			if toks[4].Quoted != tt.quoted {
				t.Errorf("expected quoted=%v", tt.quoted)
			}

			if toks[5].Text != "echo" {
				t.Errorf("expected lexing to resume after the body, got %q", toks[5].Text)
			}
		})
	}
}

func TestLex_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
	}{
		{"double quote", "echo \"abc", 1, 6},
		{"single quote", "echo ok\necho 'abc", 2, 6},
		{"command substitution", "x=$(echo", 1, 3},
		{"parameter expansion", "echo ${x", 1, 6},
		{"heredoc", "cat <<EOF\nbody\n", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Lex([]byte(tt.src), Bash)

			if diags.Count(diag.LexicalError) != 1 {
				t.Fatalf("expected one lexical error, got %v", diags)
			}

			d := diags[0]
			if d.Line != tt.line || d.Column != tt.col {
				t.Errorf("expected error at %d:%d, got %d:%d", tt.line, tt.col, d.Line, d.Column)
			}
		})
	}
}

func TestLex_IllegalCharacterContinues(t *testing.T) {
	toks, diags := Lex([]byte("echo \x01 b"), Bash)

	if diags.Count(diag.LexicalError) != 1 {
		t.Fatalf("expected one lexical error, got %v", diags)
	}

	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}

	want := []Kind{WORD, ILLEGAL, WORD, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, kinds)
	}

	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}
}

func TestLex_DialectFeatureWarnings(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		dialect Dialect
		warn    bool
	}{
		{"pipe-all in bash", "a |& b", Bash, false},
		{"pipe-all in posix", "a |& b", POSIX, true},
		{"here-string in dash", "cat <<< x", Dash, true},
		{"amp redirect in ksh", "a &> f", Ksh, true},
		{"ansi-c quote in zsh", "echo $'\\n'", Zsh, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Lex([]byte(tt.src), tt.dialect)

			got := diags.Count(diag.UnsupportedFeature) > 0
			if got != tt.warn {
				t.Errorf("expected warning=%v, got %v", tt.warn, diags)
			}

			if diags.HasFatal() {
				t.Errorf("feature warnings must not be fatal: %v", diags)
			}
		})
	}
}

func TestLex_PosixDoubleParenIsTwoParens(t *testing.T) {
	toks, _ := Lex([]byte("((a))"), POSIX)

	if toks[0].Kind != LPAREN || toks[1].Kind != LPAREN {
		t.Errorf("expected two LPAREN tokens in POSIX, got %v", summarize(toks))
	}
}

func TestLex_Positions(t *testing.T) {
	toks, _ := Lex([]byte("a\n  bb"), Bash)

	if got := toks[2].Pos; got.Line != 2 || got.Col != 3 || got.Offset != 4 {
		t.Errorf("expected 2:3 offset 4, got %+v", got)
	}
}
