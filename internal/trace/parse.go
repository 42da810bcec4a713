package trace

import (
	"encoding/json"
	"strings"
	"unicode"
)

// ExtractJSONObject returns the first balanced {...} substring of s, skipping
// braces inside JSON strings. Returns "" when none is found.
func ExtractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] substring of s.
func ExtractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

func extractBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	for start != -1 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
		// Unbalanced from this opener; try the next one.
		next := strings.IndexByte(s[start+1:], open)
		if next == -1 {
			return ""
		}
		start += next + 1
	}
	return ""
}

type verdictJSON struct {
	Status  string `json:"status"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
	Reason  string `json:"reason"`
}

// ParseVerdict interprets an adjudication reply. Only a reply whose first
// JSON object has status COLLISION and non-empty source, snippet and reason
// is a collision; anything else is CLEAN.
func ParseVerdict(reply string) Result {
	obj := ExtractJSONObject(reply)
	if obj == "" {
		return Clean()
	}
	var v verdictJSON
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return Clean()
	}
	if !strings.EqualFold(strings.TrimSpace(v.Status), string(VerdictCollision)) {
		return Clean()
	}
	r := Result{
		Verdict: VerdictCollision,
		Source:  strings.TrimSpace(v.Source),
		Snippet: strings.TrimSpace(v.Snippet),
		Reason:  strings.TrimSpace(v.Reason),
	}
	if r.Source == "" || r.Snippet == "" || r.Reason == "" {
		return Clean()
	}
	return r
}

// parseEntities reads a JSON string array from an extraction reply.
func parseEntities(reply string, limit int) []string {
	arr := ExtractJSONArray(reply)
	if arr == "" {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil
	}
	return dedupe(raw, limit)
}

// FallbackEntities returns the objective's words longer than three
// characters, punctuation trimmed, deduplicated, capped at limit.
func FallbackEntities(objective string, limit int) []string {
	var words []string
	for _, w := range strings.Fields(objective) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) && r != '_' && r != '/'
		})
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}
	return dedupe(words, limit)
}

func dedupe(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
