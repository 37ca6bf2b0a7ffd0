package sqlfile

import "strings"

// Split splits a SQL script into statements on top-level semicolons.
// Semicolons inside quoted strings, quoted identifiers, comments and
// PostgreSQL dollar-quoted bodies don't end a statement. Comments are removed,
// and empty statements are skipped.
func Split(script string) []string {
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

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == ';':
			flush()
		case c == '\'' || c == '"' || c == '`':
			end := closing(script, i+1, c)
			cur.WriteString(script[i:end])
			i = end - 1
		case c == '-' && strings.HasPrefix(script[i:], "--"):
			end := strings.IndexByte(script[i:], '\n')
			if end == -1 {
				i = len(script)
				continue
			}
			cur.WriteByte('\n')
			i += end
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			end := strings.Index(script[i+2:], "*/")
			if end == -1 {
				i = len(script)
				continue
			}
			cur.WriteByte(' ')
			i += end + 3
		case c == '$':
			if tag, ok := dollarTag(script[i:]); ok {
				end := strings.Index(script[i+len(tag):], tag)
				if end == -1 {
					cur.WriteString(script[i:])
					i = len(script)
					continue
				}
				end += i + 2*len(tag)
				cur.WriteString(script[i:end])
				i = end - 1
				continue
			}
			cur.WriteByte(c)
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return stmts
}

// closing returns the index after the quote character that closes a quoted
// section starting at from. Doubled quote characters are escapes. An
// unterminated section runs to the end of the script.
func closing(script string, from int, quote byte) int {
	for i := from; i < len(script); i++ {
		if script[i] != quote {
			continue
		}
		if i+1 < len(script) && script[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(script)
}

// dollarTag returns the opening tag of a dollar-quoted string, e.g. "$$" or
// "$body$", if s starts with one.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			return s[:i+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 1:
		default:
			return "", false
		}
	}
	return "", false
}
