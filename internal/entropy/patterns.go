package entropy

import (
	"regexp"
	"strings"
)

// =============================================================================
// SPECIFICITY ENTITY TABLES
// =============================================================================

// EntityPatterns are the regex families counted as "hard entities" by
// SpecificityMass. Every match of every pattern adds one to the entity count.
var EntityPatterns = map[string]*regexp.Regexp{
	// 200ms, 5 seconds, 10k, 3x, 500 rps
	"number_unit": regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:ms|s|sec|secs|seconds?|mins?|minutes?|h|hrs?|hours?|days?|weeks?|months?|years?|kb|mb|gb|tb|k|m|x|rps|qps|tps|users?|requests?|reqs?)\b`),
	// 5%, 99.9%
	"percent": regexp.MustCompile(`\d+(?:\.\d+)?\s?%`),
	// $50, €1.2k, £300
	"currency": regexp.MustCompile(`[$€£¥]\s?\d+(?:[.,]\d+)*[kKmMbB]?`),
	// 5€, 50 USD, 9 dollars
	"currency_suffix": regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)*\s?(?:[$€£¥]|(?:usd|eur|gbp|dollars?|euros?)\b)`),
	// bare numbers with two or more digits
	"bare_number": regexp.MustCompile(`\b\d{2,}\b`),
	// auth.ts, src/api/handler.go
	"file_extension": regexp.MustCompile(`(?i)[\w./-]+\.(?:ts|tsx|js|jsx|mjs|go|py|rs|java|kt|swift|rb|php|cs|cpp|cc|c|h|hpp|sql|json|ya?ml|toml|md|sh|css|scss|html|vue|svelte|prisma|graphql|proto)\b`),
	// src/, lib/, api/
	"path_prefix": regexp.MustCompile(`(?i)\b(?:src|lib|api|app|apps|pkg|cmd|internal|components|services|utils|config|routes|models|tests?|docs|scripts|public)/`),
	// must, shall, at least, p95
	"constraint": regexp.MustCompile(`(?i)\b(?:must|shall|at least|at most|no more than|no less than|within|latency|throughput|uptime|sla|slo|p\d{2,3}|deadline|budget|maximum|minimum|required|guarantee[sd]?)\b`),
}

// TechVocabulary is the fixed set of technology and framework names counted
// as entities. Lookups are on lower-cased, punctuation-trimmed words.
var TechVocabulary = map[string]struct{}{
	"react": {}, "next.js": {}, "nextjs": {}, "vue": {}, "angular": {}, "svelte": {},
	"node": {}, "node.js": {}, "nodejs": {}, "express": {}, "deno": {}, "bun": {},
	"typescript": {}, "javascript": {}, "python": {}, "golang": {}, "rust": {},
	"java": {}, "kotlin": {}, "swift": {}, "ruby": {}, "rails": {}, "django": {},
	"flask": {}, "fastapi": {}, "spring": {}, "postgres": {}, "postgresql": {}, "mysql": {},
	"sqlite": {}, "mongodb": {}, "redis": {}, "kafka": {}, "rabbitmq": {}, "elasticsearch": {},
	"graphql": {}, "grpc": {}, "websocket": {}, "websockets": {}, "docker": {},
	"kubernetes": {}, "k8s": {}, "terraform": {}, "aws": {}, "gcp": {}, "azure": {},
	"lambda": {}, "s3": {}, "supabase": {}, "firebase": {}, "stripe": {}, "vercel": {},
	"tailwind": {}, "prisma": {}, "oauth": {}, "jwt": {}, "nginx": {}, "openai": {},
	"gemini": {}, "langchain": {}, "pgvector": {}, "webhook": {}, "webhooks": {}, "cdn": {},
}

// wordTrim is the punctuation stripped from word edges before vocabulary lookup.
const wordTrim = `.,;:!?()[]{}"'` + "`"

// countTechTerms counts words that belong to TechVocabulary.
func countTechTerms(words []string) int {
	n := 0
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, wordTrim))
		if _, ok := TechVocabulary[w]; ok {
			n++
		}
	}
	return n
}

// =============================================================================
// STRUCTURAL MARKER TABLES
// =============================================================================

// StructuralPatterns are the regex families counted as structure markers by
// StructuralIntegrity. All-caps header lines are detected separately by
// isCapsHeader since RE2 cannot express "no lower-case letter on the line".
var StructuralPatterns = map[string]*regexp.Regexp{
	"numbered_list": regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]`),
	"bullet":        regexp.MustCompile(`(?m)^[ \t]*[-*•][ \t]`),
	"header":        regexp.MustCompile(`(?m)^#{1,4}[ \t]`),
	"conditional":   regexp.MustCompile(`(?i)\b(?:if|when|unless|otherwise|else|then|given that)\b`),
	"timeline":      regexp.MustCompile(`(?i)\b(?:phase|sprint|week|day|milestone|deadline|timeline)s?\b`),
}

// capsHeaderMinLen is the shortest trimmed line that counts as an all-caps header.
const capsHeaderMinLen = 6

// isCapsHeader reports whether line is an all-caps header such as "GOALS AND SCOPE".
// Markdown headers are already counted by the header pattern.
func isCapsHeader(line string) bool {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") || len([]rune(line)) < capsHeaderMinLen {
		return false
	}
	hasUpper := false
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		}
	}
	return hasUpper
}

// countAllMatches sums the matches of every pattern in the table.
func countAllMatches(table map[string]*regexp.Regexp, text string) int {
	n := 0
	for _, re := range table {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

// =============================================================================
// VAGUE RESPONSE MARKERS
// =============================================================================

// VagueMarkers are phrases the generation persona emits when it refuses to
// plan. Matching is case-insensitive substring search.
var VagueMarkers = []string{
	"AWAITING MISSION BRIEF",
	"MISSION SCRUBBED",
	"cannot proceed without",
	"resubmit with",
	"insufficient mission parameters",
	"please provide more detail",
}
