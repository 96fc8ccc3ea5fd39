package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// GeminiClient implements Client over the Google Gemini API.
type GeminiClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewGeminiClient creates a new client for the Google Gemini API.
func NewGeminiClient(ctx context.Context, config *ClientConfig) (*GeminiClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Defaults for Gemini API
	if config.ChatModel == "" {
		config.ChatModel = "gemini-2.0-flash"
	}
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-005"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		config: config,
		client: client,
	}, nil
}

// Generate implements one model call with optional tool access.
func (c *GeminiClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	temp := float32(0)
	cfg := genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: 800,
	}
	if req.System != "" {
		sys := genai.Text(req.System)
		cfg.SystemInstruction = sys[0]
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiDeclarations(req.Tools)}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.ChatModel, toGeminiContents(req.Messages), &cfg)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no candidates returned")
	}
	return fromGeminiCandidate(resp.Candidates[0]), nil
}

// Embed implements the embedding functionality using the Gemini API
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	}

	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, genai.Text(text), &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return res.Embeddings[0].Values, nil
}

func (c *GeminiClient) Dim() int {
	return c.config.Dim
}

// toGeminiContents converts the block-structured conversation to Gemini
// contents. Tool calls ride as FunctionCall parts on model turns and
// tool results as FunctionResponse parts on user turns.
func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		content := &genai.Content{Role: role}
		for _, b := range m.Blocks {
			switch b.Type {
			case BlockText:
				content.Parts = append(content.Parts, &genai.Part{Text: b.Text})
			case BlockToolUse:
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: b.ID, Name: b.Name, Args: b.Input},
				})
			case BlockToolResult:
				resp := map[string]any{"output": b.Content}
				if b.IsError {
					resp = map[string]any{"error": b.Content}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{ID: b.ToolUseID, Response: resp},
				})
			}
		}
		out = append(out, content)
	}
	return out
}

// toGeminiDeclarations converts tool schemas to Gemini function
// declarations.
func toGeminiDeclarations(schemas []models.ToolSchema) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		props := make(map[string]*genai.Schema, len(s.InputSchema.Properties))
		for name, p := range s.InputSchema.Properties {
			props[name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   s.InputSchema.Required,
			},
		})
	}
	return decls
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// fromGeminiCandidate converts a candidate to the neutral response
// shape. Gemini correlates function responses by name, so a missing
// call ID falls back to the function name.
func fromGeminiCandidate(cand *genai.Candidate) *Response {
	resp := &Response{StopReason: StopEndTurn}
	for _, part := range cand.Content.Parts {
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = part.FunctionCall.Name
			}
			resp.Blocks = append(resp.Blocks, ContentBlock{
				Type:  BlockToolUse,
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
			resp.StopReason = StopToolUse
			continue
		}
		if part.Text != "" {
			resp.Blocks = append(resp.Blocks, ContentBlock{Type: BlockText, Text: part.Text})
		}
	}
	return resp
}
