package ai

import (
	"context"
	"strings"
	"testing"
)

func TestNewClient_NilConfig(t *testing.T) {
	_, err := NewClient(nil)
	if err == nil {
		t.Fatal("Expected error for nil config")
	}
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(&ClientConfig{Provider: Provider("bedrock")})
	if err == nil {
		t.Fatal("Expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "unsupported provider") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestNewClient_Stub(t *testing.T) {
	client, err := NewClient(&ClientConfig{Provider: ProviderStub, Dim: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, ok := client.(*StubClient); !ok {
		t.Errorf("Expected *StubClient, got %T", client)
	}
	if client.Dim() != 3 {
		t.Errorf("Expected Dim 3, got %d", client.Dim())
	}
}

func TestNewClient_OpenAI(t *testing.T) {
	client, err := NewClient(&ClientConfig{Provider: ProviderOpenAI, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	oc, ok := client.(*OpenAIClient)
	if !ok {
		t.Fatalf("Expected *OpenAIClient, got %T", client)
	}
	// Defaults kick in when the config leaves models unset
	if oc.config.ChatModel == "" {
		t.Error("Expected a default chat model")
	}
	if oc.config.EmbedModel != "text-embedding-3-small" {
		t.Errorf("Unexpected default embed model: %q", oc.config.EmbedModel)
	}
	if oc.Dim() != 1536 {
		t.Errorf("Expected default Dim 1536, got %d", oc.Dim())
	}
}

func TestOpenAIDefaults_LargeEmbedModel(t *testing.T) {
	client := NewOpenAIClient(&ClientConfig{EmbedModel: "text-embedding-3-large"})
	if client.Dim() != 3072 {
		t.Errorf("Expected Dim 3072 for the large embed model, got %d", client.Dim())
	}
}

func TestStubClient_Generate(t *testing.T) {
	client := NewStubClient(4)

	resp, err := client.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{UserText("hello")},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.StopReason != StopEndTurn {
		t.Errorf("Expected end_turn, got %q", resp.StopReason)
	}
	if len(resp.Blocks) != 1 || resp.Blocks[0].Type != BlockText || resp.Blocks[0].Text == "" {
		t.Errorf("Expected a single text block, got %+v", resp.Blocks)
	}
}

func TestStubClient_Embed(t *testing.T) {
	client := NewStubClient(4)

	vec, err := client.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("Expected vector of dimension 4, got %d", len(vec))
	}
}

func TestUserText(t *testing.T) {
	m := UserText("hi")
	if m.Role != RoleUser {
		t.Errorf("Expected user role, got %q", m.Role)
	}
	if len(m.Blocks) != 1 || m.Blocks[0].Type != BlockText || m.Blocks[0].Text != "hi" {
		t.Errorf("Unexpected blocks: %+v", m.Blocks)
	}
}
