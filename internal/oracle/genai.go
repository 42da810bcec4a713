package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"machgate/internal/logging"
)

// GenAI is an Oracle backed by the Gemini API.
type GenAI struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAI creates a Gemini-backed oracle.
func NewGenAI(ctx context.Context, apiKey, model string, temperature float64) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAI{client: client, model: model, temperature: float32(temperature)}, nil
}

// Invoke sends messages as one GenerateContent request. System messages
// become the system instruction; assistant turns map to the model role.
func (g *GenAI) Invoke(ctx context.Context, messages []Message) (Response, error) {
	sys, turns := splitSystem(messages)
	if len(turns) == 0 {
		return Response{}, fmt.Errorf("oracle: no user message")
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}

	logging.OracleDebug("GenAI request: model=%s turns=%d system_len=%d", g.model, len(contents), len(sys))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	return Response{Content: resp.Text()}, nil
}

// Name returns the provider and model.
func (g *GenAI) Name() string {
	return "genai:" + g.model
}
