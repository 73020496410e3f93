package llm

import (
	"context"
)

// Message is one role-tagged entry in the prompt handed to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool declares a callable function the model may invoke. Only attached for
// connection types that support tool calling.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateRequest is the payload for both streaming and one-shot calls.
type GenerateRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
	Stream   bool      `json:"stream"`
}

// GenerateResponse is the result of a one-shot call.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// StreamResponse is one chunk of a streaming generation.
type StreamResponse struct {
	Content string
	Done    bool
	Error   string
}

// Provider is the interface for interacting with a language model runtime.
// GenerateStream closes ch when the stream ends; the stream is finite and
// not restartable, a retry requires a new call.
type Provider interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error
}
