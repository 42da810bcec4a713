package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", `{"status":"CLEAN"}`, `{"status":"CLEAN"}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", `Verdict follows: {"a":{"b":2}} thanks`, `{"a":{"b":2}}`},
		{"brace in string", `{"snippet":"if (x) { y }"}`, `{"snippet":"if (x) { y }"}`},
		{"escaped quote", `{"s":"say \"}\" now"}`, `{"s":"say \"}\" now"}`},
		{"first wins", `{"a":1} {"b":2}`, `{"a":1}`},
		{"unbalanced then valid", `{ oops {"a":1}`, `{"a":1}`},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONObject(tt.in))
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `["a","b"]`, ExtractJSONArray("Entities:\n```json\n[\"a\",\"b\"]\n```"))
	assert.Equal(t, "", ExtractJSONArray("none"))
}

func TestParseVerdict(t *testing.T) {
	full := `{"status":"COLLISION","source":"src/db.ts","snippet":"prisma.user","reason":"REDUNDANT PAYLOAD"}`
	assert.Equal(t, Result{Verdict: VerdictCollision, Source: "src/db.ts", Snippet: "prisma.user", Reason: "REDUNDANT PAYLOAD"},
		ParseVerdict("Here you go:\n"+full))

	clean := []string{
		``,
		`not json`,
		`{"status":"CLEAN"}`,
		`{"status":"COLLISION","source":"src/db.ts","snippet":"prisma.user"}`,
		`{"status":"COLLISION","source":"","snippet":"x","reason":"y"}`,
		`{"status":"COLLISION","source":1,"snippet":"x","reason":"y"}`,
		`{"status":"MAYBE","source":"a","snippet":"b","reason":"c"}`,
	}
	for _, in := range clean {
		assert.Equal(t, Clean(), ParseVerdict(in), in)
	}

	lower := `{"status":"collision","source":"a","snippet":"b","reason":"c"}`
	assert.True(t, ParseVerdict(lower).IsCollision())
}

func TestFallbackEntities(t *testing.T) {
	got := FallbackEntities("Add Stripe webhooks, then Stripe checkout to src/api/billing.ts!", 10)
	assert.Equal(t, []string{"Stripe", "webhooks", "then", "checkout", "src/api/billing.ts"}, got)

	long := "alpha bravo charlie delta echoes foxtrot golfer hotel india juliet kilo lima mike"
	assert.Len(t, FallbackEntities(long, 10), 10)
	assert.Empty(t, FallbackEntities("a an the", 10))
}

func TestParseEntities(t *testing.T) {
	assert.Equal(t, []string{"Clerk", "Prisma"}, parseEntities(`["Clerk", "Prisma", "", "clerk"]`, 10))
	assert.Nil(t, parseEntities(`[1, 2]`, 10))
	assert.Equal(t, []string{"a", "b"}, parseEntities(`["a","b","c"]`, 2))
}
