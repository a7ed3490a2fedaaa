package syntax

import (
	"sort"
)

// source maps byte offsets of a text buffer to positions. The buffer may be
// a slice of a larger file, in which case base is the position of its first
// byte.
type source struct {
	text  []byte
	lines []int
	base  Pos
}

func newSource(text []byte, base Pos) source {
	if !base.IsValid() {
		base = Pos{Line: 1, Col: 1}
	}

	lines := []int{0}

	for i, c := range text {
		if c == '\n' {
			lines = append(lines, i+1)
		}
	}

	return source{text: text, lines: lines, base: base}
}

func (s source) posAt(i int) Pos {
	line := sort.SearchInts(s.lines, i+1) - 1
	col := i - s.lines[line] + 1

	if line == 0 {
		col += s.base.Col - 1
	}

	return Pos{Offset: s.base.Offset + i, Line: s.base.Line + line, Col: col}
}

// scanError records the construct left open and where it started.
type scanError struct {
	at   int
	what string
}

// The skip functions below find the end of a quoted or expansion construct
// beginning at src[i]. Each returns the offset just past the construct. Each
// construct counts only its own delimiters and recurses into nested
// constructs, so the depth of every expansion kind is tracked independently.

func skipSingle(src []byte, i int) (int, *scanError) {
	for j := i + 1; j < len(src); j++ {
		if src[j] == '\'' {
			return j + 1, nil
		}
	}

	return len(src), &scanError{i, "single quote"}
}

func skipAnsiC(src []byte, i int) (int, *scanError) {
	// src[i:i+2] == "$'"
	for j := i + 2; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\'':
			return j + 1, nil
		}
	}

	return len(src), &scanError{i, "ANSI-C quote"}
}

func skipDouble(src []byte, i int, d Dialect) (int, *scanError) {
	for j := i + 1; j < len(src); {
		switch src[j] {
		case '\\':
			j += 2
		case '"':
			return j + 1, nil
		case '`':
			end, err := skipBackquote(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case '$':
			end, err := skipDollar(src, j, d, true)
			if err != nil {
				return end, err
			}

			j = end
		default:
			j++
		}
	}

	return len(src), &scanError{i, "double quote"}
}

func skipBackquote(src []byte, i int) (int, *scanError) {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '`':
			return j + 1, nil
		}
	}

	return len(src), &scanError{i, "backquote"}
}

// skipDollar skips a "$" expansion. A bare "$" or short parameter only
// consumes the dollar sign; the name is ordinary word text to the lexer.
func skipDollar(src []byte, i int, d Dialect, inDouble bool) (int, *scanError) {
	if i+1 >= len(src) {
		return i + 1, nil
	}

	switch src[i+1] {
	case '(':
		if i+2 < len(src) && src[i+2] == '(' {
			if end, err := skipArith(src, i+1, d); err == nil {
				return end, nil
			}
		}

		end, err := skipParens(src, i+1, d)
		if err != nil {
			err.at, err.what = i, "command substitution"
		}

		return end, err
	case '{':
		return skipParam(src, i, d)
	case '\'':
		if !inDouble && d.Supports(AnsiCQuote) {
			return skipAnsiC(src, i)
		}
	case '"':
		if !inDouble {
			return skipDouble(src, i+1, d)
		}
	}

	return i + 1, nil
}

// skipParens skips a parenthesized command body starting at the "(" at
// src[i], honoring quotes, comments and nested expansions.
func skipParens(src []byte, i int, d Dialect) (int, *scanError) {
	depth := 0

	for j := i; j < len(src); {
		c := src[j]

		switch {
		case c == '(':
			depth++
			j++
		case c == ')':
			depth--
			j++

			if depth == 0 {
				return j, nil
			}
		case c == '\\':
			j += 2
		case c == '\'':
			end, err := skipSingle(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case c == '"':
			end, err := skipDouble(src, j, d)
			if err != nil {
				return end, err
			}

			j = end
		case c == '`':
			end, err := skipBackquote(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case c == '$':
			end, err := skipDollar(src, j, d, false)
			if err != nil {
				return end, err
			}

			j = end
		case c == '#' && (j == 0 || isBlank(src[j-1]) || src[j-1] == '\n' || src[j-1] == ';'):
			for j < len(src) && src[j] != '\n' {
				j++
			}
		default:
			j++
		}
	}

	return len(src), &scanError{i, "parenthesis"}
}

// skipArith skips "((...))" starting at the first "(" at src[i]. The closing
// parentheses must be adjacent.
func skipArith(src []byte, i int, d Dialect) (int, *scanError) {
	depth := 0

	for j := i; j < len(src); {
		c := src[j]

		switch c {
		case '(':
			depth++
			j++
		case ')':
			depth--
			j++

			if depth == 1 {
				if j < len(src) && src[j] == ')' {
					return j + 1, nil
				}

				// "((a) b)" is not arithmetic.
				return j, &scanError{i, "arithmetic expansion"}
			}
		case '\\':
			j += 2
		case '\'':
			end, err := skipSingle(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case '"':
			end, err := skipDouble(src, j, d)
			if err != nil {
				return end, err
			}

			j = end
		case '`':
			end, err := skipBackquote(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case '$':
			end, err := skipDollar(src, j, d, false)
			if err != nil {
				return end, err
			}

			j = end
		default:
			j++
		}
	}

	return len(src), &scanError{i, "arithmetic expansion"}
}

func skipParam(src []byte, i int, d Dialect) (int, *scanError) {
	// src[i:i+2] == "${"
	depth := 0

	for j := i + 1; j < len(src); {
		switch src[j] {
		case '{':
			depth++
			j++
		case '}':
			depth--
			j++

			if depth == 0 {
				return j, nil
			}
		case '\\':
			j += 2
		case '\'':
			end, err := skipSingle(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case '"':
			end, err := skipDouble(src, j, d)
			if err != nil {
				return end, err
			}

			j = end
		case '`':
			end, err := skipBackquote(src, j)
			if err != nil {
				return end, err
			}

			j = end
		case '$':
			end, err := skipDollar(src, j, d, false)
			if err != nil {
				return end, err
			}

			j = end
		default:
			j++
		}
	}

	return len(src), &scanError{i, "parameter expansion"}
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isMeta(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ';', '&', '|', '<', '>', '(', ')':
		return true
	}

	return false
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || (c >= '0' && c <= '9') }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// IsName reports whether s is a valid variable name.
func IsName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}

	for i := 1; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return false
		}
	}

	return true
}
