package chat

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`(?:^|[\s(])(@[\p{L}\p{N}_.\-]+)`)

// ParseMentions extracts @tokens from content in order of appearance,
// without duplicates. Trailing dots are not part of a token.
func ParseMentions(content string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		token := strings.TrimRight(match[1], ".")
		if len(token) < 2 {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// mergeMentions appends the tokens parsed from content to the explicit list.
func mergeMentions(explicit []string, content string) []string {
	out := make([]string, 0, len(explicit))
	seen := map[string]struct{}{}
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" {
			return
		}
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	for _, m := range explicit {
		add(m)
	}
	for _, m := range ParseMentions(content) {
		add(m)
	}
	return out
}
