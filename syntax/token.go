package syntax

import (
	"strconv"
)

// Pos is a position in source text. Line and Col are 1-based; the zero Pos is
// invalid.
type Pos struct {
	Offset int
	Line   int
	Col    int
}

// IsValid reports whether p refers to a real position.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}

	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Col)
}

// After reports whether p comes after q.
func (p Pos) After(q Pos) bool { return p.Offset > q.Offset }

// Kind identifies the lexical class of a [Token].
type Kind int

const (
	ILLEGAL Kind = iota
	EOF
	COMMENT
	WORD
	IONUMBER
	NEWLINE
	HEREDOC // heredoc body
	ARITH   // (( ... )) command body

	operatorBegin
	SEMI      // ;
	AMP       // &
	AND       // &&
	OR        // ||
	PIPE      // |
	PIPEALL   // |&
	DSEMI     // ;;
	SEMIAMP   // ;&
	DSEMIAMP  // ;;&
	LPAREN    // (
	RPAREN    // )
	operatorEnd

	redirectBegin
	LESS      // <
	GREAT     // >
	DGREAT    // >>
	LESSAND   // <&
	GREATAND  // >&
	LESSGREAT // <>
	CLOBBER   // >|
	DLESS     // <<
	DLESSDASH // <<-
	TLESS     // <<<
	ANDGREAT  // &>
	ANDDGREAT // &>>
	redirectEnd
)

var kindText = map[Kind]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	COMMENT:   "COMMENT",
	WORD:      "WORD",
	IONUMBER:  "IONUMBER",
	NEWLINE:   "newline",
	HEREDOC:   "HEREDOC",
	ARITH:     "((",
	SEMI:      ";",
	AMP:       "&",
	AND:       "&&",
	OR:        "||",
	PIPE:      "|",
	PIPEALL:   "|&",
	DSEMI:     ";;",
	SEMIAMP:   ";&",
	DSEMIAMP:  ";;&",
	LPAREN:    "(",
	RPAREN:    ")",
	LESS:      "<",
	GREAT:     ">",
	DGREAT:    ">>",
	LESSAND:   "<&",
	GREATAND:  ">&",
	LESSGREAT: "<>",
	CLOBBER:   ">|",
	DLESS:     "<<",
	DLESSDASH: "<<-",
	TLESS:     "<<<",
	ANDGREAT:  "&>",
	ANDDGREAT: "&>>",
}

func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsOperator reports whether k is a control operator.
func (k Kind) IsOperator() bool { return k > operatorBegin && k < operatorEnd }

// IsRedirect reports whether k is a redirection operator.
func (k Kind) IsRedirect() bool { return k > redirectBegin && k < redirectEnd }

// Token is one lexical element. Tokens are values and are never modified
// after the lexer produces them.
type Token struct {
	Kind    Kind
	Text    string
	Pos     Pos
	Dialect Dialect
	// Keyword is set on WORD tokens in command position whose text is a
	// reserved word.
	Keyword bool
	// Quoted is set on HEREDOC tokens whose delimiter was quoted, and on
	// WORD tokens that contain any quoting.
	Quoted bool
}

func (t Token) String() string {
	switch t.Kind {
	case WORD, COMMENT, IONUMBER, ILLEGAL, HEREDOC, ARITH:
		return t.Kind.String() + "(" + strconv.Quote(t.Text) + ")"
	default:
		return t.Kind.String()
	}
}

// reserved lists every word that is a keyword in command position.
var reserved = map[string]bool{
	"if": true, "then": true, "elif": true, "else": true, "fi": true,
	"for": true, "in": true, "do": true, "done": true,
	"while": true, "until": true, "case": true, "esac": true,
	"select": true, "function": true,
	"{": true, "}": true, "!": true, "[[": true, "]]": true,
}

// IsKeyword reports whether s is a reserved word in some dialect.
func IsKeyword(s string) bool { return reserved[s] }
