package entropy

// Weights controls how much each vector contributes to the composite score.
type Weights struct {
	Compression int `yaml:"compression" json:"compression"`
	Ambiguity   int `yaml:"ambiguity" json:"ambiguity"`
	Specificity int `yaml:"specificity" json:"specificity"`
	Structure   int `yaml:"structure" json:"structure"`
}

func (w Weights) total() int {
	return w.Compression + w.Ambiguity + w.Specificity + w.Structure
}

// Tiers holds the inclusive upper bounds of the first three flight tiers.
// Anything above Turbulent is PURE CHAOS.
type Tiers struct {
	Mach1     int `yaml:"mach1" json:"mach1"`
	Laminar   int `yaml:"laminar" json:"laminar"`
	Turbulent int `yaml:"turbulent" json:"turbulent"`
}

// Params are the empirically tuned constants of the scorer. They have no
// derivation beyond calibration, so they are configuration rather than code.
type Params struct {
	Weights Weights `yaml:"weights" json:"weights"`
	Tiers   Tiers   `yaml:"tiers" json:"tiers"`

	// Compression ratio (rho).
	CompressionMinRunes int     `yaml:"compression_min_runes" json:"compression_min_runes"`
	CompressionFloor    int     `yaml:"compression_floor" json:"compression_floor"`
	CompressionScale    float64 `yaml:"compression_scale" json:"compression_scale"`
	CompressionLevel    int     `yaml:"compression_level" json:"compression_level"`

	// Ambiguity density (sigma).
	AmbiguityMinRunes int     `yaml:"ambiguity_min_runes" json:"ambiguity_min_runes"`
	AmbiguityFloor    int     `yaml:"ambiguity_floor" json:"ambiguity_floor"`
	AmbiguityCeiling  float64 `yaml:"ambiguity_ceiling" json:"ambiguity_ceiling"` // bits/char treated as fully diverse
	AmbiguityScale    float64 `yaml:"ambiguity_scale" json:"ambiguity_scale"`

	// Specificity mass (mu).
	SpecificityEmpty  int     `yaml:"specificity_empty" json:"specificity_empty"`
	SpecificityTarget float64 `yaml:"specificity_target" json:"specificity_target"` // entity density that scores 0
	SpecificityScale  float64 `yaml:"specificity_scale" json:"specificity_scale"`

	// Structural integrity (pi).
	StructureMinWords       int     `yaml:"structure_min_words" json:"structure_min_words"`
	StructureFloor          int     `yaml:"structure_floor" json:"structure_floor"`
	StructureWordsPerMarker float64 `yaml:"structure_words_per_marker" json:"structure_words_per_marker"`
	StructureMinExpected    float64 `yaml:"structure_min_expected" json:"structure_min_expected"`
}

// DefaultParams returns the calibrated production constants.
func DefaultParams() Params {
	return Params{
		Weights: Weights{Compression: 30, Ambiguity: 15, Specificity: 40, Structure: 15},
		Tiers:   Tiers{Mach1: 15, Laminar: 45, Turbulent: 75},

		CompressionMinRunes: 10,
		CompressionFloor:    80,
		CompressionScale:    125,
		CompressionLevel:    -1, // flate.DefaultCompression

		AmbiguityMinRunes: 5,
		AmbiguityFloor:    80,
		AmbiguityCeiling:  5.0,
		AmbiguityScale:    50,

		SpecificityEmpty:  100,
		SpecificityTarget: 0.15,
		SpecificityScale:  667,

		StructureMinWords:       10,
		StructureFloor:          70,
		StructureWordsPerMarker: 30,
		StructureMinExpected:    3,
	}
}

// withDefaults fills zero-valued fields so a partially specified config still scores.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Weights.total() == 0 {
		p.Weights = d.Weights
	}
	if p.Tiers == (Tiers{}) {
		p.Tiers = d.Tiers
	}
	if p.CompressionMinRunes == 0 {
		p.CompressionMinRunes = d.CompressionMinRunes
	}
	if p.CompressionFloor == 0 {
		p.CompressionFloor = d.CompressionFloor
	}
	if p.CompressionScale == 0 {
		p.CompressionScale = d.CompressionScale
	}
	if p.CompressionLevel == 0 {
		p.CompressionLevel = d.CompressionLevel
	}
	if p.AmbiguityMinRunes == 0 {
		p.AmbiguityMinRunes = d.AmbiguityMinRunes
	}
	if p.AmbiguityFloor == 0 {
		p.AmbiguityFloor = d.AmbiguityFloor
	}
	if p.AmbiguityCeiling == 0 {
		p.AmbiguityCeiling = d.AmbiguityCeiling
	}
	if p.AmbiguityScale == 0 {
		p.AmbiguityScale = d.AmbiguityScale
	}
	if p.SpecificityEmpty == 0 {
		p.SpecificityEmpty = d.SpecificityEmpty
	}
	if p.SpecificityTarget == 0 {
		p.SpecificityTarget = d.SpecificityTarget
	}
	if p.SpecificityScale == 0 {
		p.SpecificityScale = d.SpecificityScale
	}
	if p.StructureMinWords == 0 {
		p.StructureMinWords = d.StructureMinWords
	}
	if p.StructureFloor == 0 {
		p.StructureFloor = d.StructureFloor
	}
	if p.StructureWordsPerMarker == 0 {
		p.StructureWordsPerMarker = d.StructureWordsPerMarker
	}
	if p.StructureMinExpected == 0 {
		p.StructureMinExpected = d.StructureMinExpected
	}
	return p
}
