package sqlexec

import (
	"strings"
)

// SplitStatements breaks a script into individual statements on ';'.
// Comments are stripped, empty statements dropped. Semicolons inside quoted
// strings, quoted identifiers and dollar-quoted bodies do not split.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	n := len(script)
	for i := 0; i < n; {
		c := script[i]
		switch {
		case c == '-' && i+1 < n && script[i+1] == '-':
			j := strings.IndexByte(script[i:], '\n')
			if j < 0 {
				i = n
				continue
			}
			i += j
		case c == '/' && i+1 < n && script[i+1] == '*':
			j := strings.Index(script[i+2:], "*/")
			if j < 0 {
				i = n
				continue
			}
			cur.WriteByte(' ')
			i += j + 4
		case c == '\'' || c == '"':
			j := closingQuote(script, i)
			cur.WriteString(script[i:j])
			i = j
		case c == '$':
			tag, ok := dollarTag(script, i)
			if !ok {
				cur.WriteByte(c)
				i++
				continue
			}
			j := n
			if end := strings.Index(script[i+len(tag):], tag); end >= 0 {
				j = i + len(tag) + end + len(tag)
			}
			cur.WriteString(script[i:j])
			i = j
		case c == ';':
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts
}

// closingQuote returns the index just past the quote closing the one at i.
// Doubled quotes are escapes.
func closingQuote(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// dollarTag recognises $$ and $name$ openers. Positional parameters such as
// $1 are not tags.
func dollarTag(s string, i int) (string, bool) {
	j := i + 1
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		return "", false
	}
	for j < len(s) && isTagChar(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[i : j+1], true
	}
	return "", false
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
