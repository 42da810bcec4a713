// Package entropy implements the MACH Entropy Algorithm: a deterministic
// lexical scorer that turns a free-text mission objective into four entropy
// vectors, a composite score and a discrete flight tier.
//
// Every function here is pure. Calling Calculate twice on the same input
// yields an identical Result.
package entropy

import (
	"strings"
)

// FlightStatus is the admission decision derived from the composite score.
type FlightStatus string

const (
	StatusApproved  FlightStatus = "approved"
	StatusTurbulent FlightStatus = "turbulent"
	StatusRejected  FlightStatus = "rejected"
)

// FlightLabel is the human-facing tier name.
type FlightLabel string

const (
	LabelMach1     FlightLabel = "MACH-1"
	LabelLaminar   FlightLabel = "LAMINAR"
	LabelTurbulent FlightLabel = "TURBULENT"
	LabelPureChaos FlightLabel = "PURE CHAOS"
)

// Vectors holds the four independent sub-scores, each in [0,100].
type Vectors struct {
	Compression int `json:"compressionRatio"`    // rho
	Ambiguity   int `json:"ambiguityDensity"`    // sigma
	Specificity int `json:"specificityMass"`     // mu
	Structure   int `json:"structuralIntegrity"` // pi
}

// Result is the full output of the composer.
type Result struct {
	Score      int          `json:"entropyScore"`
	Vectors    Vectors      `json:"vectors"`
	Status     FlightStatus `json:"flightStatus"`
	Label      FlightLabel  `json:"flightLabel"`
	Confidence float64      `json:"confidence"`
}

// Scorer computes entropy results for a fixed parameter set.
type Scorer struct {
	params Params
}

// NewScorer returns a Scorer; zero-valued fields of p take their defaults.
func NewScorer(p Params) *Scorer {
	return &Scorer{params: p.withDefaults()}
}

// Params returns the effective parameters.
func (s *Scorer) Params() Params {
	return s.params
}

var defaultScorer = NewScorer(DefaultParams())

// Calculate scores text with the default parameters.
func Calculate(text string) Result { return defaultScorer.Calculate(text) }

// Classify maps a composite score to its tier using the default boundaries.
func Classify(score int) (FlightStatus, FlightLabel) { return defaultScorer.Classify(score) }

// CompressionRatio scores text with the default parameters.
func CompressionRatio(text string) int { return defaultScorer.CompressionRatio(text) }

// AmbiguityDensity scores text with the default parameters.
func AmbiguityDensity(text string) int { return defaultScorer.AmbiguityDensity(text) }

// SpecificityMass scores text with the default parameters.
func SpecificityMass(text string) int { return defaultScorer.SpecificityMass(text) }

// StructuralIntegrity scores text with the default parameters.
func StructuralIntegrity(text string) int { return defaultScorer.StructuralIntegrity(text) }

// Calculate runs all four vectors, combines them with the configured weights
// and classifies the composite.
func (s *Scorer) Calculate(text string) Result {
	v := Vectors{
		Compression: s.CompressionRatio(text),
		Ambiguity:   s.AmbiguityDensity(text),
		Specificity: s.SpecificityMass(text),
		Structure:   s.StructuralIntegrity(text),
	}

	w := s.params.Weights
	weighted := w.Compression*v.Compression +
		w.Ambiguity*v.Ambiguity +
		w.Specificity*v.Specificity +
		w.Structure*v.Structure
	score := clampScore(float64(weighted) / float64(w.total()))

	status, label := s.Classify(score)
	return Result{
		Score:      score,
		Vectors:    v,
		Status:     status,
		Label:      label,
		Confidence: float64(100-score) / 100,
	}
}

// Classify maps a composite score to its tier. Bounds are inclusive.
func (s *Scorer) Classify(score int) (FlightStatus, FlightLabel) {
	t := s.params.Tiers
	switch {
	case score <= t.Mach1:
		return StatusApproved, LabelMach1
	case score <= t.Laminar:
		return StatusApproved, LabelLaminar
	case score <= t.Turbulent:
		return StatusTurbulent, LabelTurbulent
	default:
		return StatusRejected, LabelPureChaos
	}
}

// IsVagueResponse reports whether generated text carries one of the
// VagueMarkers, i.e. the generator itself refused for lack of detail.
func IsVagueResponse(generated string) bool {
	lower := strings.ToLower(generated)
	for _, m := range VagueMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// EffectiveStatus combines the numeric tier with the vague-response check.
// A vague response forces turbulent regardless of the score.
func EffectiveStatus(r Result, vague bool) FlightStatus {
	if vague {
		return StatusTurbulent
	}
	return r.Status
}

// ForceWorst relabels r as PURE CHAOS/rejected, keeping its vectors and score.
func ForceWorst(r Result) Result {
	r.Status = StatusRejected
	r.Label = LabelPureChaos
	return r
}

// WordCount is the whitespace word count used on deck cards.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
