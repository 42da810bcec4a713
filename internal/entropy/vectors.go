package entropy

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
)

// Each vector function is total: every input, including the empty string,
// yields an integer in [0,100]. Higher is worse.

// CompressionRatio scores how compressible text is (rho). Template and
// buzzword text compresses well and scores high.
func (s *Scorer) CompressionRatio(text string) int {
	p := s.params
	if utf8.RuneCountInString(text) < p.CompressionMinRunes {
		return p.CompressionFloor
	}

	raw := []byte(text)
	compressed, err := deflateLen(raw, p.CompressionLevel)
	if err != nil || compressed >= len(raw) {
		// Framing overhead dominates: too short to carry a measurable signal.
		return p.CompressionFloor
	}

	ratio := 1 - float64(compressed)/float64(len(raw))
	return clampScore(ratio * p.CompressionScale)
}

// deflateLen returns the raw-deflate size of data.
func deflateLen(data []byte, level int) (int, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

// AmbiguityDensity scores lexical diversity (sigma) via Shannon entropy of the
// lower-cased character distribution. Natural prose sits around 4.0-4.5
// bits/char; formulaic text is lower and scores higher.
func (s *Scorer) AmbiguityDensity(text string) int {
	p := s.params
	if utf8.RuneCountInString(text) < p.AmbiguityMinRunes {
		return p.AmbiguityFloor
	}
	return clampScore((p.AmbiguityCeiling - shannonEntropy(strings.ToLower(text))) * p.AmbiguityScale)
}

// shannonEntropy returns H = -sum(p*log2(p)) over the rune histogram of text.
func shannonEntropy(text string) float64 {
	freq := make(map[rune]int)
	total := 0
	for _, r := range text {
		freq[r]++
		total++
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range freq {
		pr := float64(n) / float64(total)
		h -= pr * math.Log2(pr)
	}
	return h
}

// SpecificityMass scores the density of hard entities per word (mu),
// inverted so that specific text scores near 0.
func (s *Scorer) SpecificityMass(text string) int {
	p := s.params
	words := strings.Fields(text)
	if len(words) == 0 {
		return p.SpecificityEmpty
	}
	density := float64(CountEntities(text)) / float64(len(words))
	return clampScore((p.SpecificityTarget - density) * p.SpecificityScale)
}

// CountEntities returns the number of hard-entity matches in text across
// EntityPatterns and TechVocabulary.
func CountEntities(text string) int {
	return countAllMatches(EntityPatterns, text) + countTechTerms(strings.Fields(text))
}

// StructuralIntegrity scores structure markers relative to length (pi),
// inverted so that well-structured text scores near 0.
func (s *Scorer) StructuralIntegrity(text string) int {
	p := s.params
	words := len(strings.Fields(text))
	if words < p.StructureMinWords {
		return p.StructureFloor
	}
	expected := math.Max(p.StructureMinExpected, float64(words)/p.StructureWordsPerMarker)
	ratio := float64(CountStructuralMarkers(text)) / expected
	return clampScore((1.0 - ratio) * 100)
}

// CountStructuralMarkers returns the number of list, header, conditional and
// timeline markers in text.
func CountStructuralMarkers(text string) int {
	n := countAllMatches(StructuralPatterns, text)
	for _, line := range strings.Split(text, "\n") {
		if isCapsHeader(line) {
			n++
		}
	}
	return n
}

// clampScore rounds v half away from zero and clamps it to [0,100].
func clampScore(v float64) int {
	r := math.Round(v)
	if r < 0 || math.IsNaN(r) {
		return 0
	}
	if r > 100 {
		return 100
	}
	return int(r)
}
