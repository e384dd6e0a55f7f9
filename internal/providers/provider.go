package providers

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	TopP        float64
}

type ChatResponse struct {
	Text string
}

// StreamChunk is one increment of a streamed reply. The terminal chunk has
// Done set; Err, when non-nil, is also terminal.
type StreamChunk struct {
	Text string
	Done bool
	Err  error
}

type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream delivers chunks in generation order and always closes the
	// channel after the terminal chunk. Cancelling ctx stops the stream.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}
