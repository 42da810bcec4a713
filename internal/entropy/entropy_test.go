package entropy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	specificObjective = "Reduce p95 latency to 200ms in src/api/auth.ts using Redis, must not exceed 5% error rate"
	buzzwordObjective = "We need to leverage synergy to holistically delight our ecosystem"
)

var sampleInputs = []string{
	"",
	"x",
	"Build a thing",
	specificObjective,
	buzzwordObjective,
	strings.Repeat("synergy ", 200),
	"日本語のテキストも採点できる必要があります。",
	"# GOALS\n1. Ship auth.ts\n2. Add Redis cache\n- p99 < 300ms\nIf the cache misses, then fall back to Postgres.\nPhase 1 in week 2.",
	"\x00\xff\xfe invalid utf8 \xc3\x28",
}

func TestVectorsAreBounded(t *testing.T) {
	for _, in := range sampleInputs {
		r := Calculate(in)
		for name, v := range map[string]int{
			"score":       r.Score,
			"compression": r.Vectors.Compression,
			"ambiguity":   r.Vectors.Ambiguity,
			"specificity": r.Vectors.Specificity,
			"structure":   r.Vectors.Structure,
		} {
			assert.GreaterOrEqual(t, v, 0, "%s for %q", name, in)
			assert.LessOrEqual(t, v, 100, "%s for %q", name, in)
		}
		assert.InDelta(t, float64(100-r.Score)/100, r.Confidence, 1e-9)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	for _, in := range sampleInputs {
		first := Calculate(in)
		for i := 0; i < 5; i++ {
			if diff := cmp.Diff(first, Calculate(in)); diff != "" {
				t.Fatalf("Calculate(%q) not deterministic (-first +again):\n%s", in, diff)
			}
		}
	}
}

func TestShortInputFloors(t *testing.T) {
	assert.Equal(t, 80, CompressionRatio(""))
	assert.Equal(t, 80, CompressionRatio("123456789"))
	assert.Equal(t, 80, AmbiguityDensity("abcd"))
	assert.Equal(t, 100, SpecificityMass(""))
	assert.Equal(t, 100, SpecificityMass("   \n\t "))
	assert.Equal(t, 70, StructuralIntegrity("one two three four five six seven eight nine"))
}

func TestEmptyInputIsPureChaos(t *testing.T) {
	r := Calculate("")
	assert.Equal(t, Vectors{Compression: 80, Ambiguity: 80, Specificity: 100, Structure: 70}, r.Vectors)
	assert.Equal(t, 87, r.Score)
	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, LabelPureChaos, r.Label)
}

func TestBuildAThing(t *testing.T) {
	r := Calculate("Build a thing")

	assert.Equal(t, 80, r.Vectors.Compression, "deflate framing exceeds a 13-byte input")
	assert.Equal(t, 80, r.Vectors.Ambiguity)
	assert.Equal(t, 100, r.Vectors.Specificity)
	assert.Equal(t, 70, r.Vectors.Structure)
	assert.Greater(t, r.Score, 75)
	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, LabelPureChaos, r.Label)
}

// Text that deflate cannot shrink takes the short-input floor rather than the
// 0 that the ratio formula would clamp to.
func TestIncompressibleTextTakesFloor(t *testing.T) {
	text := "Migrate billing webhooks onto Kafka queue"
	require.GreaterOrEqual(t, len(text), 30)

	compressed, err := deflateLen([]byte(text), DefaultParams().CompressionLevel)
	require.NoError(t, err)
	require.GreaterOrEqual(t, compressed, len(text), "premise: deflate output is not smaller")

	assert.Equal(t, 80, CompressionRatio(text))
}

func TestSpecificBeatsBuzzword(t *testing.T) {
	specific := Calculate(specificObjective)
	buzz := Calculate(buzzwordObjective)

	assert.Less(t, specific.Vectors.Specificity, buzz.Vectors.Specificity)
	assert.Equal(t, 0, specific.Vectors.Specificity)
	assert.Equal(t, 100, buzz.Vectors.Specificity)

	assert.Contains(t, []FlightLabel{LabelMach1, LabelLaminar}, specific.Label,
		"specific objective scored %d (%+v)", specific.Score, specific.Vectors)
	assert.Equal(t, StatusApproved, specific.Status)

	assert.Contains(t, []FlightLabel{LabelTurbulent, LabelPureChaos}, buzz.Label,
		"buzzword objective scored %d (%+v)", buzz.Score, buzz.Vectors)
	assert.NotEqual(t, StatusApproved, buzz.Status)
}

func TestRepetitiveTextCompressesHigh(t *testing.T) {
	assert.GreaterOrEqual(t, CompressionRatio(strings.Repeat("leverage synergy ", 50)), 95)
	assert.GreaterOrEqual(t, AmbiguityDensity(strings.Repeat("a", 100)), 95)
}

func TestStructuredTextScoresLowStructure(t *testing.T) {
	text := strings.Join([]string{
		"## Plan",
		"1. Add rate limiting to src/api/router.go",
		"2. Cache sessions in Redis with a 15 minute TTL",
		"- If Redis is down, then fall back to Postgres",
		"- Phase 2 ships in week 3",
	}, "\n")
	assert.Less(t, StructuralIntegrity(text), 10)
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		score  int
		status FlightStatus
		label  FlightLabel
	}{
		{0, StatusApproved, LabelMach1},
		{15, StatusApproved, LabelMach1},
		{16, StatusApproved, LabelLaminar},
		{45, StatusApproved, LabelLaminar},
		{46, StatusTurbulent, LabelTurbulent},
		{75, StatusTurbulent, LabelTurbulent},
		{76, StatusRejected, LabelPureChaos},
		{100, StatusRejected, LabelPureChaos},
	}
	for _, tt := range tests {
		status, label := Classify(tt.score)
		assert.Equal(t, tt.status, status, "score %d", tt.score)
		assert.Equal(t, tt.label, label, "score %d", tt.score)
	}
}

func TestIsVagueResponse(t *testing.T) {
	assert.True(t, IsVagueResponse("MISSION SCRUBBED: objective too vague"))
	assert.True(t, IsVagueResponse("mission scrubbed"))
	assert.True(t, IsVagueResponse("I cannot proceed without a target stack."))
	assert.True(t, IsVagueResponse("Please Provide More Detail about the API."))
	assert.False(t, IsVagueResponse("# Deck\n1. Add index on users.email"))
	assert.False(t, IsVagueResponse(""))
}

func TestEffectiveStatus(t *testing.T) {
	approved := Result{Score: 10, Status: StatusApproved, Label: LabelMach1}
	assert.Equal(t, StatusApproved, EffectiveStatus(approved, false))
	assert.Equal(t, StatusTurbulent, EffectiveStatus(approved, true))

	rejected := Result{Score: 90, Status: StatusRejected, Label: LabelPureChaos}
	assert.Equal(t, StatusRejected, EffectiveStatus(rejected, false))
}

func TestForceWorstKeepsVectors(t *testing.T) {
	r := Calculate(specificObjective)
	worst := ForceWorst(r)

	assert.Equal(t, StatusRejected, worst.Status)
	assert.Equal(t, LabelPureChaos, worst.Label)
	assert.Equal(t, r.Vectors, worst.Vectors)
	assert.Equal(t, r.Score, worst.Score)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount("  Build a\tthing\n"))
}

func TestCustomParams(t *testing.T) {
	// Only compression carries weight.
	s := NewScorer(Params{Weights: Weights{Compression: 1}})
	r := s.Calculate("Build a thing")
	assert.Equal(t, r.Vectors.Compression, r.Score)

	p := s.Params()
	assert.Equal(t, DefaultParams().Tiers, p.Tiers, "zero tiers fall back to defaults")
	assert.Equal(t, 125.0, p.CompressionScale)

	strict := NewScorer(Params{Tiers: Tiers{Mach1: 5, Laminar: 10, Turbulent: 20}})
	status, label := strict.Classify(15)
	assert.Equal(t, StatusTurbulent, status)
	assert.Equal(t, LabelTurbulent, label)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-12.3))
	assert.Equal(t, 100, clampScore(150))
	assert.Equal(t, 87, clampScore(86.5))
	assert.Equal(t, 44, clampScore(44.4))
}

func TestShannonEntropy(t *testing.T) {
	require.Zero(t, shannonEntropy(""))
	assert.Zero(t, shannonEntropy("aaaa"))
	assert.InDelta(t, 1.0, shannonEntropy("abab"), 1e-9)
	assert.InDelta(t, 2.0, shannonEntropy("abcd"), 1e-9)
}
