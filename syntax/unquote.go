package syntax

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Unescape removes backslash escapes from unquoted literal text. A
// backslash-newline pair is a line continuation and disappears.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			if s[i] == '\n' {
				continue
			}
		}

		sb.WriteByte(s[i])
	}

	return sb.String()
}

// UnescapeDouble removes the escapes that are special inside double quotes:
// \$ \` \" \\ and backslash-newline. Other backslashes are kept.
func UnescapeDouble(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '$', '`', '"', '\\':
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

// UnescapeAnsiC decodes the body of a $'...' string.
func UnescapeAnsiC(s string) string {
	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)

			continue
		}

		i++

		switch c = s[i]; c {
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'e', 'E':
			sb.WriteByte(0x1b)
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case '\\', '\'', '"', '?':
			sb.WriteByte(c)
		case 'c':
			if i+1 < len(s) {
				i++
				sb.WriteByte(s[i] & 0x1f)
			}
		case 'x', 'u', 'U':
			width := 2

			switch c {
			case 'u':
				width = 4
			case 'U':
				width = 8
			}

			j := i + 1

			for j < len(s) && j-i-1 < width && isHex(s[j]) {
				j++
			}

			if j == i+1 {
				sb.WriteByte('\\')
				sb.WriteByte(c)

				continue
			}

			n, _ := strconv.ParseUint(s[i+1:j], 16, 32)
			if c == 'x' {
				sb.WriteByte(byte(n))
			} else {
				sb.WriteString(string(rune(n)))
			}

			i = j - 1
		default:
			if c >= '0' && c <= '7' {
				j := i

				for j < len(s) && j-i < 3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}

				n, _ := strconv.ParseUint(s[i:j], 8, 8)
				sb.WriteByte(byte(n))
				i = j - 1

				continue
			}

			sb.WriteByte('\\')
			sb.WriteByte(c)
		}
	}

	if !utf8.ValidString(sb.String()) {
		return strings.ToValidUTF8(sb.String(), string(utf8.RuneError))
	}

	return sb.String()
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Value returns the string w expands to when it contains only literal and
// quoted text, with quotes and escapes removed.
func (w *Word) Value() (string, bool) {
	var sb strings.Builder
	if !valueParts(&sb, w.Parts, false) {
		return "", false
	}

	return sb.String(), true
}

func valueParts(sb *strings.Builder, parts []WordPart, quoted bool) bool {
	for _, p := range parts {
		switch p := p.(type) {
		case *Lit:
			if quoted {
				sb.WriteString(UnescapeDouble(p.Value))
			} else {
				sb.WriteString(Unescape(p.Value))
			}
		case *SglQuoted:
			if p.Dollar {
				sb.WriteString(UnescapeAnsiC(p.Value))
			} else {
				sb.WriteString(p.Value)
			}
		case *DblQuoted:
			if !valueParts(sb, p.Parts, true) {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// HasGlob reports whether the unquoted literal text of w contains an
// unescaped pattern character.
func (w *Word) HasGlob() bool {
	for _, p := range w.Parts {
		lit, ok := p.(*Lit)
		if !ok {
			continue
		}

		for i := 0; i < len(lit.Value); i++ {
			switch lit.Value[i] {
			case '\\':
				i++
			case '*', '?', '[':
				return true
			}
		}
	}

	return false
}
