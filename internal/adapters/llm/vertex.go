package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

type VertexClient struct {
	client      *genai.Client
	modelName   string
	maxTokens   int32
	temperature float32
}

// NewVertexClient creates an LLMClient based on Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, cfg ProviderConfig) (*VertexClient, error) {
	if cfg.GCPProject == "" || cfg.GCPLocation == "" {
		return nil, fmt.Errorf("vertex: GCP project and location must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     cfg.GCPProject,
		Location:    cfg.GCPLocation,
		Backend:     genai.BackendVertexAI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:      client,
		modelName:   cfg.Model,
		maxTokens:   int32(cfg.maxTokens()),
		temperature: float32(cfg.Temperature),
	}, nil
}

// Complete implements domain.LLMClient using Vertex AI.
func (v *VertexClient) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	contents := make([]*genai.Content, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	temp := v.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: v.maxTokens,
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	return res.Text(), nil
}
