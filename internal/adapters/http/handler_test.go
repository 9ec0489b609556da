package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/coopleo-agent/internal/adapters/http"
	"github.com/PabloGalante/coopleo-agent/internal/adapters/llm"
	"github.com/PabloGalante/coopleo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/coopleo-agent/internal/app/conversation"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

type testServer struct {
	handler  http.Handler
	svc      *conversation.Service
	sessions *memory.SessionStore
}

// scripted answers name requests, suggestion prompts and summaries; every
// other prompt gets a plain follow-up question.
func scripted(_ int, p domain.Prompt) (string, error) {
	switch {
	case strings.Contains(p.System, "numbered list"):
		return "1. Yes\n2. Tell me more\n3. Not now", nil
	case strings.Contains(p.System, "first name"):
		return "Welcome to Coopleo! What is your first name?", nil
	case strings.Contains(p.System, "summary"):
		return "A short recap.", nil
	default:
		return "How does that make you feel?", nil
	}
}

func newTestServer(t *testing.T, client domain.LLMClient, cfg httpadapter.Config) *testServer {
	t.Helper()

	sessions := memory.NewSessionStore(memory.SessionConfig{TTL: time.Hour, MaxSessions: 100}, nil)
	composer := llm.NewComposer(llm.ComposerConfig{Locale: domain.LocaleEN, ClosingThreshold: 8})
	svc := conversation.NewService(client, sessions, memory.NewExchangeStore(), composer, conversation.DefaultConfig())

	return &testServer{
		handler:  httpadapter.NewServer(svc, cfg),
		svc:      svc,
		sessions: sessions,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	for _, path := range []string{"/healthz", "/api/test", "/test"} {
		w := srv.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "Test route is working", decode(t, w)["message"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
}

func TestChatMissingMessage(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	for _, body := range []string{`{}`, `{"message":""}`, `{"conversation_id":"abc","isInitialContext":true}`} {
		w := srv.do(t, http.MethodPost, "/chat", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.NotEmpty(t, decode(t, w)["error"])
	}

	w := srv.do(t, http.MethodPost, "/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, srv.sessions.Len())
}

func TestChatInitialContextScenario(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	body := `{"message": "{\"state\":\"tense\",\"mood\":\"anxious\",\"location\":\"home\",\"topic\":\"communication\"}", "isInitialContext": true}`
	w := srv.do(t, http.MethodPost, "/chat", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	assert.Contains(t, out["response"], "first name")
	assert.NotEmpty(t, out["conversation_id"])
	assert.Equal(t, []any{}, out["suggestions"])
	assert.Equal(t, false, out["contains_recommendations"])
	assert.Equal(t, false, out["asks_for_email"])
	assert.NotContains(t, out, "final_recommendations")
}

func TestChatConversationFlow(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/api/chat", `{"message":"start","isInitialContext":true,"context":{"state":"calm","mood":"hopeful","location":"work","topic":"trust"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["conversation_id"].(string)

	w = srv.do(t, http.MethodPost, "/api/chat", fmt.Sprintf(`{"message":"Sam","conversation_id":%q}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, id, out["conversation_id"])
	assert.Contains(t, out["response"], "Sam")
	assert.Contains(t, out["response"], "trust")
	assert.Len(t, out["suggestions"], 3)

	w = srv.do(t, http.MethodPost, "/api/chat", fmt.Sprintf(`{"message":"We do not talk","conversation_id":%q}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	out = decode(t, w)
	assert.Equal(t, "How does that make you feel?", out["response"])
	assert.Equal(t, []any{"Yes", "Tell me more", "Not now"}, out["suggestions"])

	require.NoError(t, srv.svc.Close(context.Background()))

	w = srv.do(t, http.MethodGet, "/conversations/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Len(t, history["exchanges"], 3)

	w = srv.do(t, http.MethodGet, "/conversations/"+id+"?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["exchanges"], 1)

	w = srv.do(t, http.MethodGet, "/summary/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)
	assert.Equal(t, "A short recap.", summary["summary"])
	assert.Equal(t, id, summary["session_id"])
}

func TestChatUnknownConversationID(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/chat", `{"message":"hello","conversation_id":"nonexistent-id"}`)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.NotEmpty(t, out["conversation_id"])
	assert.NotEqual(t, "nonexistent-id", out["conversation_id"])
}

func TestChatModelUnavailable(t *testing.T) {
	down := llm.NewScriptedLLM(func(int, domain.Prompt) (string, error) {
		return "", fmt.Errorf("%w after 3 attempt(s): connection refused", domain.ErrModelUnavailable)
	})
	srv := newTestServer(t, down, httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	out := decode(t, w)
	assert.Contains(t, out["error"], "Service unavailable")
	assert.Contains(t, out["details"], "connection refused")
	assert.NotContains(t, out, "response")
}

func TestChatModelProcessingError(t *testing.T) {
	broken := llm.NewScriptedLLM(func(int, domain.Prompt) (string, error) {
		return "", errors.New("invalid model name")
	})
	srv := newTestServer(t, broken, httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	out := decode(t, w)
	assert.Contains(t, out["error"], "Error processing request")
	assert.Contains(t, out["details"], "invalid model name")
}

func TestChatWithoutModelClient(t *testing.T) {
	srv := newTestServer(t, nil, httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Service unavailable")
}

func TestResetIsIdempotent(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	for i := 0; i < 2; i++ {
		w := srv.do(t, http.MethodPost, "/reset", `{"conversation_id":"nonexistent-id"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"message": "Conversation reset successfully"}, decode(t, w))
	}

	w := srv.do(t, http.MethodDelete, "/api/chat", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/api/chat/reset", `{"conversation_id":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestResetRemovesSession(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["conversation_id"].(string)
	require.Equal(t, 1, srv.sessions.Len())

	w = srv.do(t, http.MethodPost, "/reset", fmt.Sprintf(`{"conversation_id":%q}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, srv.sessions.Len())
}

func TestAutoReply(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	w := srv.do(t, http.MethodPost, "/auto-reply", `{"input":"I feel lost"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Yes", "Tell me more", "Not now"}, decode(t, w)["suggestions"])

	w = srv.do(t, http.MethodPost, "/auto-reply", `{"input":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummaryWithoutHistory(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	w := srv.do(t, http.MethodGet, "/summary/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no conversation found for this id", decode(t, w)["error"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{AllowedOrigins: []string{"https://app.coopleo.fr"}})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.coopleo.fr")
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.coopleo.fr", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{RateLimit: 0.001, RateBurst: 2})

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/healthz", "").Code)

	w := srv.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", decode(t, w)["error"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, srv.do(t, http.MethodGet, "/chat", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(scripted), httpadapter.Config{})

	srv.do(t, http.MethodGet, "/healthz", "")
	w := srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coopleo_http_requests_total")
}
