package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/coopleo-agent/internal/adapters/llm"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

func TestFactoryProviders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     llm.ProviderConfig
		wantErr string
	}{
		{name: "mock", cfg: llm.ProviderConfig{Provider: "mock"}},
		{name: "anthropic", cfg: llm.ProviderConfig{Provider: "anthropic", APIKey: "sk-test", Model: "claude"}},
		{name: "openai", cfg: llm.ProviderConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt"}},
		{name: "vertex", cfg: llm.ProviderConfig{Provider: "vertex", GCPProject: "p", GCPLocation: "europe-west1", Model: "gemini", HTTPClient: http.DefaultClient}},
		{name: "anthropic without key", cfg: llm.ProviderConfig{Provider: "anthropic"}, wantErr: "API key"},
		{name: "openai without key", cfg: llm.ProviderConfig{Provider: "openai"}, wantErr: "API key"},
		{name: "vertex without project", cfg: llm.ProviderConfig{Provider: "vertex"}, wantErr: "GCP project"},
		{name: "unknown", cfg: llm.ProviderConfig{Provider: "llama"}, wantErr: "unsupported LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearGoogleEnv(t)
			client, err := llm.NewFactory(tt.cfg)(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestOpenAIClientSendsSystemAndHistory(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"How are you both?"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client, err := llm.NewOpenAIClient(llm.ProviderConfig{APIKey: "sk-test", Model: "gpt", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), domain.Prompt{
		System: "be kind",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Text: "hi"},
			{Role: domain.RoleAssistant, Text: "hello"},
			{Role: domain.RoleUser, Text: "help"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "How are you both?", reply)

	assert.Equal(t, "gpt", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be kind", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "help", got.Messages[3].Content)
}

func TestAnthropicClientJoinsTextBlocks(t *testing.T) {
	var got struct {
		Model  string `json:"model"`
		System []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	client, err := llm.NewAnthropicClient(llm.ProviderConfig{APIKey: "sk-test", Model: "claude", BaseURL: srv.URL})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), domain.Prompt{
		System:   "be kind",
		Messages: []domain.Message{{Role: domain.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	assert.Equal(t, "claude", got.Model)
	require.Len(t, got.System, 1)
	assert.Equal(t, "be kind", got.System[0].Text)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func clearGoogleEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "GOOGLE_GENAI_USE_VERTEXAI"} {
		t.Setenv(k, "")
	}
}

func TestVertexClientMapsRoles(t *testing.T) {
	clearGoogleEnv(t)

	var got struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "projects/p/locations/europe-west1")
		assert.Contains(t, r.URL.Path, "gemini:generateContent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"What matters most to you?"}]}}]}`))
	}))
	defer srv.Close()

	client, err := llm.NewVertexClient(context.Background(), llm.ProviderConfig{
		GCPProject:  "p",
		GCPLocation: "europe-west1",
		Model:       "gemini",
		BaseURL:     srv.URL,
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), domain.Prompt{
		System: "be kind",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Text: "hi"},
			{Role: domain.RoleAssistant, Text: "hello"},
			{Role: domain.RoleUser, Text: "help"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "What matters most to you?", reply)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "help", got.Contents[2].Parts[0].Text)
	require.Len(t, got.SystemInstruction.Parts, 1)
	assert.Equal(t, "be kind", got.SystemInstruction.Parts[0].Text)
}
