// Package payload recovers JSON data embedded in inline page scripts.
package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// anyCall matches `identifier.identifier(` immediately followed by an object literal.
var anyCall = regexp.MustCompile(`[A-Za-z_$][\w$]*\.[A-Za-z_$][\w$]*\s*\(\s*\{`)

// FindScript returns the text of the first script element containing marker.
func FindScript(doc *goquery.Document, marker string) (string, error) {
	var found string
	ok := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, marker) {
			found = text
			ok = true
			return false
		}
		return true
	})
	if !ok {
		return "", &PayloadNotFoundError{Marker: marker}
	}
	return found, nil
}

// ExtractCall returns the object literal passed to the first call of callee in
// script. An empty callee matches any `identifier.identifier({` call. The
// literal is captured by brace depth, so nested values that contain `);` do
// not truncate it.
func ExtractCall(script, callee string) (string, error) {
	re := anyCall
	if callee != "" {
		re = regexp.MustCompile(regexp.QuoteMeta(callee) + `\s*\(\s*\{`)
	}
	loc := re.FindStringIndex(script)
	if loc == nil {
		return "", ErrCallNotFound
	}
	start := loc[1] - 1
	end, err := matchBrace(script, start)
	if err != nil {
		return "", err
	}
	return script[start : end+1], nil
}

// matchBrace returns the index of the '}' closing the '{' at src[open].
func matchBrace(src string, open int) (int, error) {
	depth := 0
	for i := open; i < len(src); i++ {
		switch c := src[i]; c {
		case '"', '\'', '`':
			i = skipString(src, i)
		case '/':
			if i+1 < len(src) && (src[i+1] == '/' || src[i+1] == '*') {
				i = skipComment(src, i) - 1
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, ErrUnbalanced
}

// skipString returns the index of the quote closing the literal at src[start].
func skipString(src string, start int) int {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(src)
}

// Decode repairs a JavaScript object literal and parses it. Numbers are kept
// as json.Number.
func Decode(literal string) (map[string]any, error) {
	repaired := Repair(literal)
	dec := json.NewDecoder(strings.NewReader(repaired))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &PayloadRepairError{Repaired: repaired, Err: err}
	}
	if obj == nil {
		return nil, &PayloadRepairError{Repaired: repaired, Err: fmt.Errorf("literal is not an object")}
	}
	return obj, nil
}

// Extract locates the script containing marker, captures the object literal
// passed to callee and returns it as parsed JSON.
func Extract(doc *goquery.Document, marker, callee string) (map[string]any, error) {
	script, err := FindScript(doc, marker)
	if err != nil {
		return nil, err
	}
	literal, err := ExtractCall(script, callee)
	if err != nil {
		return nil, &PayloadNotFoundError{Marker: marker, Err: err}
	}
	return Decode(literal)
}

// ExtractToken returns the quoted string assigned to property in the first
// script that contains marker and declares it. Scripts that mention marker
// without an assignment are skipped. Both `name: '...'` and `name = '...'`
// forms are recognised.
func ExtractToken(doc *goquery.Document, marker, property string) (string, error) {
	re := regexp.MustCompile(`(?:^|[^\w$.])` + regexp.QuoteMeta(property) +
		`\s*[:=]\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")`)

	var token string
	seen := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, marker) {
			return true
		}
		seen = true
		m := re.FindStringSubmatch(text)
		if m == nil {
			return true
		}
		token = m[1]
		if token == "" {
			token = m[2]
		}
		return token == ""
	})
	if !seen {
		return "", &PayloadNotFoundError{Marker: marker}
	}
	if token == "" {
		return "", &PayloadNotFoundError{Marker: marker, Err: ErrTokenNotFound}
	}
	return token, nil
}
