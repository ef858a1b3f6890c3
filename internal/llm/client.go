// Package llm provides the thin AI-fix clients the auto-fix loop calls.
// Providers are swappable collaborators; only Complete matters here.
package llm

import (
	"context"
	"fmt"
)

// Client is a minimal completion interface over one provider.
type Client interface {
	// Complete sends a system prompt and user prompt, returning the raw
	// response text. Errors propagate as-is; the caller owns retry policy.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// ModelName identifies the configured model, for logs.
	ModelName() string
}

// FixFunc asks the model to repair its own output: prompt describes the
// problems, priorResponse is the text whose directives caused them.
type FixFunc func(ctx context.Context, prompt, priorResponse string) (string, error)

const fixSystemPrompt = `You are fixing build, type and lint errors in a web project you just edited.
Respond with prestige directives only. Emit minimal diffs: rewrite only the files that must change, using
<prestige-write path="..." description="...">FULL FILE CONTENT</prestige-write>.
For any unresolved import, emit <prestige-add-dependency packages="..."></prestige-add-dependency>.
Do not explain; do not restate unchanged files.`

// NewFixFunc adapts a Client into the FixFunc the orchestrator consumes,
// threading the prior response in as conversation context.
func NewFixFunc(client Client) FixFunc {
	return func(ctx context.Context, prompt, priorResponse string) (string, error) {
		user := prompt
		if priorResponse != "" {
			user = fmt.Sprintf("Your previous response was:\n\n%s\n\n%s", priorResponse, prompt)
		}
		return client.Complete(ctx, fixSystemPrompt, user)
	}
}

// MockClient is a scripted client for tests.
type MockClient struct {
	Responses []string
	Err       error
	Calls     []string // user prompts received
	model     string
}

func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses, model: "mock"}
}

func (m *MockClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.Calls = append(m.Calls, userPrompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	next := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	return next, nil
}

func (m *MockClient) ModelName() string { return m.model }
