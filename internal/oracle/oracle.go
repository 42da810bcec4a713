// Package oracle abstracts the reasoning model consulted for entity
// extraction, collision adjudication and mission plan generation.
package oracle

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of an oracle conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is the oracle's reply.
type Response struct {
	Content string `json:"content"`
}

// Oracle is a stateless chat-completion endpoint.
type Oracle interface {
	Invoke(ctx context.Context, messages []Message) (Response, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, messages []Message) (Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, messages []Message) (Response, error) {
	return f(ctx, messages)
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// splitSystem joins all system messages into one instruction and returns the rest.
func splitSystem(messages []Message) (string, []Message) {
	var sys []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}

// =============================================================================
// PURPOSE TAGGING
// =============================================================================

type purposeKey struct{}

// WithPurpose tags ctx with the reason for an oracle call, e.g. "collision_audit".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the purpose tagged on ctx, or "unspecified".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unspecified"
}

// =============================================================================
// FACTORY
// =============================================================================

// Config selects and configures an oracle provider.
type Config struct {
	Provider    string // genai, ollama
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// New creates an oracle for cfg.Provider.
func New(ctx context.Context, cfg Config) (Oracle, error) {
	switch cfg.Provider {
	case "genai", "":
		return NewGenAI(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s (use 'genai' or 'ollama')", cfg.Provider)
	}
}
