package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Render substitutes {name} placeholders in tmpl with vars. Literal braces
// are written doubled ({{ and }}). A placeholder without a value, or a
// stray single brace, is an error.
func Render(tmpl string, vars map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			name := tmpl[i+1 : i+1+end]
			if !isIdent(name) {
				return "", fmt.Errorf("invalid placeholder {%s} at offset %d", name, i)
			}
			val, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("missing value for placeholder {%s}", name)
			}
			sb.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// Check reports whether tmpl renders with exactly the given variable names
// available: it fails on malformed braces and on placeholders outside vars.
func Check(tmpl string, vars []string) error {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v] = ""
	}
	_, err := Render(tmpl, m)
	return err
}

// Placeholders lists the distinct placeholder names in tmpl, sorted.
func Placeholders(tmpl string) []string {
	seen := map[string]bool{}
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i+1:], '}')
		if end < 0 {
			break
		}
		if name := tmpl[i+1 : i+1+end]; isIdent(name) {
			seen[name] = true
		}
		i += end + 1
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
