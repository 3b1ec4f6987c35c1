// Package sqlguard enforces the read-only statement policy. Detection is
// syntactic: comments and string literals are stripped first so keywords
// hidden inside them cannot trigger (or dodge) the gate.
package sqlguard

import (
	"regexp"
	"strings"

	"github.com/gregoryerrl/pgtoolset/types"
)

var readKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
	"SHOW":    true,
}

var writeKeywordRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|GRANT|REVOKE|CREATE|COPY)\b`)

// Strip removes SQL comments, string literals and quoted identifiers,
// leaving the statement skeleton for keyword inspection. Handles line
// comments, block comments, single-quoted strings with '' escapes,
// dollar-quoted strings, double-quoted identifiers with "" escapes, and
// backtick-quoted identifiers.
func Strip(sqlText string) string {
	var b strings.Builder
	i := 0
	n := len(sqlText)
	for i < n {
		switch {
		case sqlText[i] == '-' && i+1 < n && sqlText[i+1] == '-':
			for i < n && sqlText[i] != '\n' {
				i++
			}
		case sqlText[i] == '/' && i+1 < n && sqlText[i+1] == '*':
			i += 2
			depth := 1
			for i < n && depth > 0 {
				if sqlText[i] == '*' && i+1 < n && sqlText[i+1] == '/' {
					depth--
					i += 2
					continue
				}
				if sqlText[i] == '/' && i+1 < n && sqlText[i+1] == '*' {
					depth++
					i += 2
					continue
				}
				i++
			}
		case sqlText[i] == '\'':
			i++
			for i < n {
				if sqlText[i] == '\'' {
					if i+1 < n && sqlText[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			b.WriteString("''")
		case sqlText[i] == '"':
			// Quoted identifiers can legally be named after keywords, so
			// SELECT "update" FROM t must not trip the write scan.
			i++
			for i < n {
				if sqlText[i] == '"' {
					if i+1 < n && sqlText[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			b.WriteString(`""`)
		case sqlText[i] == '`':
			i++
			for i < n && sqlText[i] != '`' {
				i++
			}
			if i < n {
				i++
			}
			b.WriteString("``")
		case sqlText[i] == '$':
			// Dollar-quoted string: $tag$ ... $tag$
			if end := dollarQuoteEnd(sqlText[i:]); end > 0 {
				i += end
				b.WriteString("''")
				continue
			}
			b.WriteByte(sqlText[i])
			i++
		default:
			b.WriteByte(sqlText[i])
			i++
		}
	}
	return b.String()
}

func dollarQuoteEnd(s string) int {
	close := strings.IndexByte(s[1:], '$')
	if close < 0 {
		return 0
	}
	tag := s[:close+2]
	for _, c := range tag[1 : len(tag)-1] {
		if !isTagChar(byte(c)) {
			return 0
		}
	}
	rest := strings.Index(s[len(tag):], tag)
	if rest < 0 {
		return 0
	}
	return len(tag) + rest + len(tag)
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Validate rejects any statement that is not a single read-only query.
// It returns a write-policy error for write statements and multi-statement
// batches, and a query error for empty input.
func Validate(sqlText string) error {
	stripped := strings.TrimSpace(Strip(sqlText))
	if stripped == "" {
		return types.NewError(types.KindQuery, "empty SQL statement")
	}

	// A trailing semicolon is harmless; anything after one is a batch.
	if idx := strings.IndexByte(stripped, ';'); idx >= 0 {
		if strings.TrimSpace(stripped[idx+1:]) != "" {
			return types.NewError(types.KindWritePolicy,
				"multi-statement batches are not allowed; submit a single SELECT query")
		}
		stripped = stripped[:idx]
	}

	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return types.NewError(types.KindQuery, "empty SQL statement")
	}
	leading := strings.ToUpper(fields[0])

	if !readKeywords[leading] {
		return types.Errorf(types.KindWritePolicy,
			"write operations are blocked; only SELECT queries are allowed (got %s)", leading)
	}

	// WITH ... DELETE and friends: data-modifying CTEs still carry the write
	// keyword in the stripped text.
	if m := writeKeywordRe.FindString(stripped); m != "" {
		return types.Errorf(types.KindWritePolicy,
			"write operations are blocked; statement contains %s", strings.ToUpper(m))
	}

	return nil
}

// IsReadOnly reports whether sqlText passes the read-only gate. Used to pick
// the execution path when writes are allowed.
func IsReadOnly(sqlText string) bool {
	return Validate(sqlText) == nil
}
