package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/coopleo-agent/internal/app/conversation"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
	"github.com/PabloGalante/coopleo-agent/internal/observability"
)

const maxBodyBytes = 1 << 20

type Config struct {
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
}

type Server struct {
	svc *conversation.Service
}

func NewServer(svc *conversation.Service, cfg Config) http.Handler {
	s := &Server{svc: svc}
	r := mux.NewRouter()

	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/chat", s.handleReset).Methods(http.MethodDelete)
	r.HandleFunc("/auto-reply", s.handleAutoReply).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}", s.handleConversation).Methods(http.MethodGet)
	r.HandleFunc("/summary/{id}", s.handleSummary).Methods(http.MethodGet)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/test", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/test", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	r.Use(withMetrics)

	return chainMiddlewares(r,
		withLogging,
		withRateLimit(NewRateLimiter(cfg.RateLimit, cfg.RateBurst)),
		withCORS(cfg.AllowedOrigins),
		withRequestID,
	)
}

// DTOs

type sessionContextRequest struct {
	State    string `json:"state"`
	Mood     string `json:"mood"`
	Location string `json:"location"`
	Topic    string `json:"topic"`
}

type chatRequest struct {
	Message          string                 `json:"message"`
	IsInitialContext bool                   `json:"isInitialContext"`
	ConversationID   string                 `json:"conversation_id"`
	Context          *sessionContextRequest `json:"context,omitempty"`
}

type chatResponse struct {
	Response                string   `json:"response"`
	Suggestions             []string `json:"suggestions"`
	ConversationID          string   `json:"conversation_id"`
	ContainsRecommendations bool     `json:"contains_recommendations"`
	AsksForEmail            bool     `json:"asks_for_email"`
	FinalRecommendations    string   `json:"final_recommendations,omitempty"`
}

type resetRequest struct {
	ConversationID string `json:"conversation_id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type autoReplyRequest struct {
	Input string `json:"input"`
}

type autoReplyResponse struct {
	Suggestions []string `json:"suggestions"`
}

type exchangeResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	CreatedAt   time.Time `json:"created_at"`
}

type conversationResponse struct {
	ConversationID string             `json:"conversation_id"`
	Exchanges      []exchangeResponse `json:"exchanges"`
}

type summaryResponse struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handlers

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "No message provided")
		return
	}

	in := conversation.ChatInput{
		ConversationID:   domain.SessionID(req.ConversationID),
		Message:          req.Message,
		IsInitialContext: req.IsInitialContext,
	}
	if req.Context != nil {
		in.Context = &domain.SessionContext{
			State:    req.Context.State,
			Mood:     req.Context.Mood,
			Location: req.Context.Location,
			Topic:    req.Context.Topic,
		}
	}

	out, err := s.svc.HandleMessage(r.Context(), in)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:                out.Response,
		Suggestions:             nonNil(out.Suggestions),
		ConversationID:          string(out.ConversationID),
		ContainsRecommendations: out.ContainsRecommendations,
		AsksForEmail:            out.AsksForEmail,
		FinalRecommendations:    out.FinalRecommendations,
	})
}

// handleReset accepts an optional body; a missing id is a no-op.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON body")
		return
	}

	if err := s.svc.Reset(r.Context(), domain.SessionID(req.ConversationID)); err != nil {
		serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Conversation reset successfully"})
}

func (s *Server) handleAutoReply(w http.ResponseWriter, r *http.Request) {
	var req autoReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	suggestions, err := s.svc.Suggest(r.Context(), req.Input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, autoReplyResponse{Suggestions: nonNil(suggestions)})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(mux.Vars(r)["id"])

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	exchanges, err := s.svc.History(r.Context(), id, limit)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	resp := conversationResponse{
		ConversationID: string(id),
		Exchanges:      make([]exchangeResponse, 0, len(exchanges)),
	}
	for _, e := range exchanges {
		resp.Exchanges = append(resp.Exchanges, exchangeResponse{
			ID:          string(e.ID),
			SessionID:   string(e.SessionID),
			UserMessage: e.UserMessage,
			AIResponse:  e.AIResponse,
			CreatedAt:   e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(mux.Vars(r)["id"])

	summary, err := s.svc.Summary(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{SessionID: string(id), Summary: summary})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Test route is working"})
}

// HTTP Helpers

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg, "")
}

// serviceError maps the error taxonomy onto status codes.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	log := observability.LoggerFromContext(r.Context())

	var appErr *domain.Error
	if !errors.As(err, &appErr) {
		log.Error("unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", err.Error())
		return
	}

	var details string
	if appErr.Cause != nil {
		details = appErr.Cause.Error()
	}

	switch appErr.Kind {
	case domain.KindValidation:
		badRequest(w, appErr.Message)
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, appErr.Message, "")
	case domain.KindServiceUnavailable:
		log.Error("service unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "Service unavailable: "+appErr.Message, details)
	default:
		log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error processing request: "+appErr.Message, details)
	}
}
