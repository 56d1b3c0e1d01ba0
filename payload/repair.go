package payload

import (
	"strings"
)

// Repair rewrites a JavaScript object literal into JSON text.
//
// The scan tracks string literals and brace/bracket nesting, so rewrites only
// happen in code positions:
//   - single-quoted and backtick strings become double-quoted strings
//   - bare identifier and numeric keys get quoted
//   - commas directly before '}' or ']' are dropped
//   - line and block comments are removed
//   - undefined, NaN and Infinity become null
//
// Repair never fails; text it cannot fix is passed through and rejected by the
// JSON decoder.
func Repair(src string) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)

	var stack []byte
	expectKey := false

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = writeString(&b, src, i)
			expectKey = false
		case c == '/' && i+1 < len(src) && (src[i+1] == '/' || src[i+1] == '*'):
			i = skipComment(src, i)
		case c == '{' || c == '[':
			stack = append(stack, c)
			b.WriteByte(c)
			expectKey = c == '{'
			i++
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			b.WriteByte(c)
			expectKey = false
			i++
		case c == ',':
			j := skipSpaceAndComments(src, i+1)
			if j < len(src) && (src[j] == '}' || src[j] == ']') {
				i = j
				continue
			}
			b.WriteByte(c)
			expectKey = len(stack) > 0 && stack[len(stack)-1] == '{'
			i++
		case expectKey && (isIdentStart(c) || isDigit(c)):
			j := scanIdent(src, i)
			b.WriteByte('"')
			b.WriteString(src[i:j])
			b.WriteByte('"')
			expectKey = false
			i = j
		case isIdentStart(c):
			j := scanIdent(src, i)
			b.WriteString(normalizeBareword(src[i:j]))
			i = j
		case c == '-' && strings.HasPrefix(src[i+1:], "Infinity"):
			b.WriteString("null")
			i += len("-Infinity")
		default:
			if !isSpace(c) {
				expectKey = false
			}
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func normalizeBareword(word string) string {
	switch word {
	case "undefined", "NaN", "Infinity":
		return "null"
	}
	return word
}

// writeString copies the string literal starting at src[start] as a JSON
// string and returns the index just past its closing quote.
func writeString(b *strings.Builder, src string, start int) int {
	quote := src[start]
	b.WriteByte('"')
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			writeEscape(b, src, &i)
		case c == quote:
			b.WriteByte('"')
			return i + 1
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return len(src)
}

// writeEscape translates the escape whose letter is at src[*i]. It may advance
// *i past extra characters consumed by the escape.
func writeEscape(b *strings.Builder, src string, i *int) {
	e := src[*i]
	switch e {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		b.WriteByte('\\')
		b.WriteByte(e)
	case '\'', '`':
		b.WriteByte(e)
	case 'v':
		b.WriteString(`\u000b`)
	case '0':
		b.WriteString(`\u0000`)
	case 'x':
		if *i+2 < len(src) && isHex(src[*i+1]) && isHex(src[*i+2]) {
			b.WriteString(`\u00`)
			b.WriteString(src[*i+1 : *i+3])
			*i += 2
			return
		}
		b.WriteByte(e)
	case '\n':
		// line continuation
	case '\r':
		if *i+1 < len(src) && src[*i+1] == '\n' {
			*i++
		}
	default:
		b.WriteByte(e)
	}
}

func skipComment(src string, i int) int {
	if src[i+1] == '/' {
		end := strings.IndexByte(src[i:], '\n')
		if end < 0 {
			return len(src)
		}
		return i + end
	}
	end := strings.Index(src[i+2:], "*/")
	if end < 0 {
		return len(src)
	}
	return i + 2 + end + 2
}

func skipSpaceAndComments(src string, i int) int {
	for i < len(src) {
		switch {
		case isSpace(src[i]):
			i++
		case src[i] == '/' && i+1 < len(src) && (src[i+1] == '/' || src[i+1] == '*'):
			i = skipComment(src, i)
		default:
			return i
		}
	}
	return i
}

func scanIdent(src string, i int) int {
	for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i])) {
		i++
	}
	return i
}

const hexDigits = "0123456789abcdef"

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
