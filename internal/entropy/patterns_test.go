package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    int
	}{
		{"number_unit", "respond in 200ms for 10k users", 2},
		{"number_unit", "cold start under 3 seconds", 1},
		{"percent", "error rate below 0.5% and 99.9 % uptime", 2},
		{"currency", "budget of $50k or €1,200", 2},
		{"currency_suffix", "costs 5€ total", 1},
		{"currency_suffix", "cap 9 dollars or 50 USD", 2},
		{"currency_suffix", "1.200,50 eur and 30 Euros", 2},
		{"currency_suffix", "ship 3 servers", 0},
		{"bare_number", "port 8080 and id 7", 1},
		{"file_extension", "edit src/api/auth.ts and main.go", 2},
		{"file_extension", "nothing to see here", 0},
		{"path_prefix", "move it under internal/store and cmd/", 2},
		{"constraint", "must respond within budget; p99 latency is required", 6},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			re, ok := EntityPatterns[tt.pattern]
			if !ok {
				t.Fatalf("unknown pattern %q", tt.pattern)
			}
			assert.Len(t, re.FindAllStringIndex(tt.text, -1), tt.want)
		})
	}
}

func TestTechVocabulary(t *testing.T) {
	assert.Equal(t, 3, countTechTerms([]string{"React,", "(Postgres)", "KAFKA.", "stuff"}))
	assert.Zero(t, countTechTerms([]string{"go", "rest", "synergy"}), "common English words are not tech terms")
}

func TestCountEntities(t *testing.T) {
	assert.Zero(t, CountEntities(buzzwordObjective))
	assert.GreaterOrEqual(t, CountEntities(specificObjective), 8)
}

func TestCountEntities_CurrencyAfterAmount(t *testing.T) {
	assert.Equal(t, 1, CountEntities("costs 5€ total"))
	assert.Equal(t, 1, CountEntities("cap 9 dollars"))
	// 50 is also a bare number, as with the $50 prefix form.
	assert.Equal(t, 2, CountEntities("limit 50 USD"))
}

func TestStructuralPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    int
	}{
		{"numbered_list", "1. first\n  2) second\nnot 3. inline", 2},
		{"bullet", "- one\n* two\n• three\nno - dash", 3},
		{"header", "# Title\n#### Deep\n##### too deep\nnot # inline", 2},
		{"conditional", "If it fails, then retry; otherwise alert", 3},
		{"timeline", "Phase 1 spans two weeks before the milestone", 3},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Len(t, StructuralPatterns[tt.pattern].FindAllStringIndex(tt.text, -1), tt.want)
		})
	}
}

func TestIsCapsHeader(t *testing.T) {
	assert.True(t, isCapsHeader("GOALS AND SCOPE"))
	assert.True(t, isCapsHeader("  PHASE 1:  "))
	assert.False(t, isCapsHeader("# GOALS"), "markdown headers are counted elsewhere")
	assert.False(t, isCapsHeader("API"), "too short")
	assert.False(t, isCapsHeader("Goals And Scope"))
	assert.False(t, isCapsHeader("123 456"))
}

func TestCountStructuralMarkers(t *testing.T) {
	text := "OVERVIEW\n# Plan\n1. Build\n- Test\nIf green, ship in week 2"
	// caps header, markdown header, numbered item, bullet, "If", "week"
	assert.Equal(t, 6, CountStructuralMarkers(text))
}
