package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"machgate/internal/logging"
)

// Ollama is an Oracle backed by a local Ollama server's /api/chat endpoint.
type Ollama struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllama creates an Ollama-backed oracle. Request deadlines come from
// the caller's context.
func NewOllama(endpoint, model string, temperature float64) *Ollama {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	return &Ollama{
		endpoint:    strings.TrimRight(endpoint, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{},
	}
}

// Invoke posts messages to /api/chat without streaming.
func (o *Ollama) Invoke(ctx context.Context, messages []Message) (Response, error) {
	req := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": o.temperature},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logging.OracleDebug("Ollama request: model=%s messages=%d", o.model, len(messages))

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return Response{}, fmt.Errorf("ollama error: %s", out.Error)
	}
	return Response{Content: out.Message.Content}, nil
}

// Name returns the provider and model.
func (o *Ollama) Name() string {
	return "ollama:" + o.model
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}
