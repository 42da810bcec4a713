// Package prompts holds the versioned persona set used by the collision
// auditor and the mission orchestrator. Defaults are baked into the binary;
// a YAML file can override any persona.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"machgate/internal/logging"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Placeholders substituted by Render.
const (
	VarObjective = "objective"
	VarContext   = "context"
)

// Persona is one system prompt plus its user message template.
type Persona struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Render substitutes {{name}} placeholders in the user template. Unknown
// placeholders are left in place.
func (p Persona) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(p.User)
}

// Set is the complete persona configuration.
type Set struct {
	Version           string  `yaml:"version"`
	EntityExtraction  Persona `yaml:"entity_extraction"`
	CollisionAudit    Persona `yaml:"collision_audit"`
	MissionGeneration Persona `yaml:"mission_generation"`
}

// Default returns the embedded persona set.
func Default() *Set {
	var s Set
	if err := yaml.Unmarshal(defaultsYAML, &s); err != nil {
		// The embedded file is part of the build.
		panic(fmt.Sprintf("prompts: embedded defaults are invalid: %v", err))
	}
	return &s
}

// Load returns the defaults overlaid with the personas defined in path.
// An empty path returns the defaults.
func Load(path string) (*Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts %s: %w", path, err)
	}
	var override Set
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse prompts %s: %w", path, err)
	}

	if override.Version != "" {
		set.Version = override.Version
	}
	set.EntityExtraction = merge(set.EntityExtraction, override.EntityExtraction)
	set.CollisionAudit = merge(set.CollisionAudit, override.CollisionAudit)
	set.MissionGeneration = merge(set.MissionGeneration, override.MissionGeneration)

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("prompts %s: %w", path, err)
	}
	logging.Boot("Loaded prompt overrides from %s (version %s)", path, set.Version)
	return set, nil
}

func merge(base, over Persona) Persona {
	if over.System != "" {
		base.System = over.System
	}
	if over.User != "" {
		base.User = over.User
	}
	return base
}

// Validate checks every persona has a system prompt and that user templates
// reference the objective.
func (s *Set) Validate() error {
	personas := []struct {
		name string
		p    Persona
	}{
		{"entity_extraction", s.EntityExtraction},
		{"collision_audit", s.CollisionAudit},
		{"mission_generation", s.MissionGeneration},
	}
	for _, n := range personas {
		if strings.TrimSpace(n.p.System) == "" {
			return fmt.Errorf("%s: empty system prompt", n.name)
		}
		if !strings.Contains(n.p.User, "{{"+VarObjective+"}}") {
			return fmt.Errorf("%s: user template lacks {{%s}}", n.name, VarObjective)
		}
	}
	if !strings.Contains(s.CollisionAudit.User, "{{"+VarContext+"}}") {
		return fmt.Errorf("collision_audit: user template lacks {{%s}}", VarContext)
	}
	return nil
}
