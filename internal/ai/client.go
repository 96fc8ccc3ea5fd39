package ai

import (
	"context"
	"errors"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason reports why the model stopped generating.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
)

// Block kinds carried in messages and responses.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one piece of a message: plain text, a named tool
// invocation, or a tool result echoing the invocation's ID.
type ContentBlock struct {
	Type string

	// BlockText
	Text string

	// BlockToolUse
	ID    string
	Name  string
	Input map[string]any

	// BlockToolResult
	ToolUseID string
	Content   string
	IsError   bool
}

// Message is one turn of a conversation.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// UserText builds a plain-text user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []ContentBlock{{Type: BlockText, Text: text}}}
}

// GenerateRequest carries one model call. Leaving Tools empty strips
// tool access from the call, which forces a text response.
type GenerateRequest struct {
	System   string
	Messages []Message
	Tools    []models.ToolSchema
}

// Response is the provider-neutral shape of one model reply.
type Response struct {
	StopReason StopReason
	Blocks     []ContentBlock
}

// Client provides generation and embedding against one model provider.
type Client interface {
	Generate(ctx context.Context, req *GenerateRequest) (*Response, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
	Dim        int
	ProjectID  string
	Location   string
	Provider   Provider
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGemini:
		return NewGeminiClient(context.Background(), config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a stub implementation of the Client interface for testing
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	return &StubClient{dim: dim}
}

// Generate returns a canned text response without calling any provider.
func (s *StubClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	return &Response{
		StopReason: StopEndTurn,
		Blocks:     []ContentBlock{{Type: BlockText, Text: "stub response"}},
	}, nil
}

// Embed returns a zero vector of the configured dimension.
func (s *StubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
