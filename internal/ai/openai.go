package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// OpenAIClient implements Client over the OpenAI chat-completions API,
// mapping tool calls to and from the provider-neutral block format.
type OpenAIClient struct {
	config *ClientConfig
	client *openai.Client
}

func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	// Set default models if not provided
	if config.ChatModel == "" {
		config.ChatModel = openai.GPT4oMini
	}
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.Dim == 0 {
		// Set default dimensions based on the embedding model
		switch config.EmbedModel {
		case "text-embedding-3-large":
			config.Dim = 3072
		default:
			config.Dim = 1536
		}
	}

	return &OpenAIClient{
		config: config,
		client: openai.NewClient(config.APIKey),
	}
}

// Generate implements one model call with optional tool access.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("PROVIDER_API_KEY unset")
	}

	oreq := openai.ChatCompletionRequest{
		Model:       c.config.ChatModel,
		Messages:    toOpenAIMessages(req.System, req.Messages),
		Temperature: 0,
		MaxTokens:   800,
	}
	if len(req.Tools) > 0 {
		oreq.Tools = toOpenAITools(req.Tools)
		oreq.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}
	return fromOpenAIChoice(resp.Choices[0]), nil
}

// Embed implements the embedding functionality
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("PROVIDER_API_KEY unset")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.config.EmbedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i := range raw {
		vec[i] = float32(raw[i])
	}
	return vec, nil
}

func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}

// toOpenAIMessages flattens the block-structured conversation into the
// OpenAI wire shape: assistant tool_use blocks become tool_calls, and
// each tool_result block becomes its own role=tool message carrying the
// originating call ID.
func toOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			am := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, b := range m.Blocks {
				switch b.Type {
				case BlockText:
					am.Content = b.Text
				case BlockToolUse:
					args, err := json.Marshal(b.Input)
					if err != nil {
						args = []byte("{}")
					}
					am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
						ID:   b.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      b.Name,
							Arguments: string(args),
						},
					})
				}
			}
			out = append(out, am)
		case RoleUser:
			for _, b := range m.Blocks {
				switch b.Type {
				case BlockText:
					out = append(out, openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleUser,
						Content: b.Text,
					})
				case BlockToolResult:
					content := b.Content
					if b.IsError {
						content = "Error: " + content
					}
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						ToolCallID: b.ToolUseID,
						Content:    content,
					})
				}
			}
		}
	}
	return out
}

// toOpenAITools converts tool schemas to OpenAI function definitions.
func toOpenAITools(schemas []models.ToolSchema) []openai.Tool {
	tools := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.InputSchema,
			},
		})
	}
	return tools
}

// fromOpenAIChoice converts a completion choice to the neutral response
// shape, parsing tool-call arguments back into structured input.
func fromOpenAIChoice(choice openai.ChatCompletionChoice) *Response {
	resp := &Response{StopReason: StopEndTurn}
	if choice.Message.Content != "" {
		resp.Blocks = append(resp.Blocks, ContentBlock{Type: BlockText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed arguments degrade to an empty input map; the
			// tool reports the missing parameters as its output.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		}
		resp.Blocks = append(resp.Blocks, ContentBlock{
			Type:  BlockToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	if choice.FinishReason == openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) > 0 {
		resp.StopReason = StopToolUse
	}
	return resp
}
