package generate

import "strings"

// ParseMultiPrompt expands the first {a|b|...} group in s into one literal
// prompt per variant. Text without a complete group is returned as-is, and
// \{ \} \| escape the syntax characters.
func ParseMultiPrompt(s string) []string {
	open, close := -1, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			if open < 0 {
				open = i
			}
		case '}':
			if open >= 0 {
				close = i
			}
		}
		if close >= 0 {
			break
		}
	}
	if open < 0 || close < 0 {
		return []string{unescape(s)}
	}

	prefix, body, suffix := s[:open], s[open+1:close], s[close+1:]
	var out []string
	for _, variant := range splitVariants(body) {
		out = append(out, unescape(prefix)+unescape(variant)+unescape(suffix))
	}
	return out
}

func splitVariants(body string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '|':
			parts = append(parts, body[start:i])
			start = i + 1
		}
	}
	return append(parts, body[start:])
}

var unescaper = strings.NewReplacer(`\{`, "{", `\}`, "}", `\|`, "|")

func unescape(s string) string {
	return unescaper.Replace(s)
}
