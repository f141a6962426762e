// Package sanitize neutralises user-supplied text before it is stored or rendered.
package sanitize

import "strings"

// entities are the encodings String produces. An ampersand that already opens
// one of them is left alone so that sanitizing twice is the same as once.
var entities = []string{"&amp;", "&quot;", "&#x27;", "&#x2F;"}

// String strips angle brackets, HTML-encodes & " ' and /, and trims
// surrounding whitespace. String(String(s)) == String(s) for every s.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '<', '>':
		case '&':
			if startsEntity(s[i:]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		case '/':
			b.WriteString("&#x2F;")
		default:
			b.WriteByte(c)
		}
	}

	return strings.TrimSpace(b.String())
}

// Value sanitizes strings and returns every other value unchanged.
func Value(v any) any {
	if s, ok := v.(string); ok {
		return String(s)
	}
	return v
}

func startsEntity(s string) bool {
	for _, e := range entities {
		if strings.HasPrefix(s, e) {
			return true
		}
	}
	return false
}
