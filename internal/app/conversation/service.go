package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/coopleo-agent/internal/app/agentflow"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
	"github.com/PabloGalante/coopleo-agent/internal/observability"
)

// Composer builds every prompt the service sends to the model.
type Composer interface {
	agentflow.SuggestionPrompter
	agentflow.SummaryPrompter

	Locale() domain.Locale
	IsClosing(s *domain.Session) bool
	Compose(s *domain.Session, input string) domain.Prompt
	ComposeNameRequest(s *domain.Session) domain.Prompt
	ComposeOpening(s *domain.Session) domain.Prompt
	ContextInput(s *domain.Session) string
}

type Config struct {
	NameCapture     bool
	SingleParagraph bool
	RequireQuestion bool
	PersistTimeout  time.Duration
	Suggestions     agentflow.SuggesterConfig
}

func DefaultConfig() Config {
	return Config{
		NameCapture:     true,
		RequireQuestion: true,
		PersistTimeout:  10 * time.Second,
		Suggestions:     agentflow.DefaultSuggesterConfig(),
	}
}

type Service struct {
	llm        domain.LLMClient
	sessions   domain.SessionRepository
	recorder   domain.ExchangeRecorder
	composer   Composer
	classifier *Classifier
	suggester  *agentflow.Suggester
	summarizer *agentflow.Summarizer
	cfg        Config
	now        func() time.Time

	pending sync.WaitGroup
}

// NewService wires the orchestrator. llm may be nil when the model client
// could not be initialized; chat calls then fail with ServiceUnavailable.
// recorder may be nil to disable persistence.
func NewService(
	llm domain.LLMClient,
	sessions domain.SessionRepository,
	recorder domain.ExchangeRecorder,
	composer Composer,
	cfg Config,
) *Service {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}

	return &Service{
		llm:        llm,
		sessions:   sessions,
		recorder:   recorder,
		composer:   composer,
		classifier: NewClassifier(composer.Locale()),
		suggester:  agentflow.NewSuggester(llm, composer, cfg.Suggestions),
		summarizer: agentflow.NewSummarizer(llm, composer),
		cfg:        cfg,
		now:        time.Now,
	}
}

type ChatInput struct {
	ConversationID   domain.SessionID
	Message          string
	IsInitialContext bool
	Context          *domain.SessionContext
}

type ChatOutput struct {
	ConversationID          domain.SessionID
	Response                string
	Suggestions             []string
	ContainsRecommendations bool
	AsksForEmail            bool
	FinalRecommendations    string
}

// HandleMessage runs one conversation turn.
func (s *Service) HandleMessage(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, domain.Validation("message is required")
	}
	if s.llm == nil {
		return nil, domain.Unavailable("model client is not initialized", domain.ErrModelUnavailable)
	}

	if in.IsInitialContext {
		return s.startSession(ctx, in, text)
	}

	session, created, err := s.sessions.GetOrCreate(ctx, in.ConversationID)
	if err != nil {
		return nil, domain.Processing("session lookup failed", err)
	}

	log := observability.LoggerFromContext(ctx).With("session_id", session.ID)
	if created {
		log.Info("unknown conversation, new session started", "requested_id", in.ConversationID)
	}

	session.Lock()
	defer session.Unlock()

	if created {
		// no name request was ever sent for this session
		session.SkipNameCapture()
	}

	if !session.NameProvided() {
		return s.captureName(ctx, session, text), nil
	}
	return s.reply(ctx, session, text)
}

// startSession handles an explicit conversation start carrying the session context.
func (s *Service) startSession(ctx context.Context, in ChatInput, text string) (*ChatOutput, error) {
	session, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, domain.Processing("session creation failed", err)
	}

	session.Lock()
	defer session.Unlock()

	session.SetContext(resolveContext(in.Context, text))
	convCtx := session.Context()

	log := observability.LoggerFromContext(ctx).With("session_id", session.ID)
	log.Info("starting new session",
		"topic", convCtx.Topic,
		"mood", convCtx.Mood,
		"name_capture", s.cfg.NameCapture)

	var (
		prompt domain.Prompt
		stage  = "name_request"
	)
	if s.cfg.NameCapture {
		prompt = s.composer.ComposeNameRequest(session)
	} else {
		session.SkipNameCapture()
		prompt = s.composer.ComposeOpening(session)
		stage = "opening"
	}

	raw, err := s.complete(observability.WithStage(ctx, stage), prompt)
	if err != nil {
		log.Error("session start failed", "stage", stage, "error", err)
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, err
	}

	response := strings.TrimSpace(raw)
	if !s.cfg.NameCapture {
		response = s.polish(response)
	}

	session.AppendTurns(
		domain.Turn{Role: domain.RoleUser, Text: s.composer.ContextInput(session)},
		domain.Turn{Role: domain.RoleAssistant, Text: response},
	)
	s.record(ctx, session.ID, text, response)

	log.Info("session started")

	return &ChatOutput{
		ConversationID: session.ID,
		Response:       response,
		Suggestions:    []string{},
	}, nil
}

// captureName stores the reply to the name request and acknowledges it without a model call.
func (s *Service) captureName(ctx context.Context, session *domain.Session, text string) *ChatOutput {
	session.SetName(text)

	response := s.classifier.NameAck(session.Name(), session.Context().Topic)
	session.AppendTurns(
		domain.Turn{Role: domain.RoleUser, Text: text},
		domain.Turn{Role: domain.RoleAssistant, Text: response},
	)
	session.IncrementMessageCount()
	s.record(ctx, session.ID, text, response)

	observability.LoggerFromContext(ctx).Info("user name captured", "session_id", session.ID)

	return &ChatOutput{
		ConversationID: session.ID,
		Response:       response,
		Suggestions:    s.suggester.Suggest(ctx, response, session.History()),
	}
}

func (s *Service) reply(ctx context.Context, session *domain.Session, text string) (*ChatOutput, error) {
	closing := s.composer.IsClosing(session)
	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"message_count", session.MessageCount(),
		"closing", closing,
	)
	log.Info("handling message")

	raw, err := s.complete(observability.WithStage(ctx, "chat"), s.composer.Compose(session, text))
	if err != nil {
		log.Error("model call failed", "error", err)
		return nil, err
	}

	body := s.classifier.StripGreeting(raw)
	bulleted := HasBullets(body)
	out := &ChatOutput{
		ConversationID:          session.ID,
		ContainsRecommendations: ContainsRecommendations(body),
		AsksForEmail:            AsksForEmail(body),
		Suggestions:             []string{},
	}
	if out.ContainsRecommendations {
		out.FinalRecommendations = ExtractRecommendations(body)
	}

	out.Response = body
	if s.cfg.SingleParagraph {
		out.Response = CollapseWhitespace(out.Response)
	}
	if s.cfg.RequireQuestion && !bulleted && !out.ContainsRecommendations {
		out.Response = s.classifier.EnsureQuestion(out.Response)
	}

	session.AppendTurns(
		domain.Turn{Role: domain.RoleUser, Text: text},
		domain.Turn{Role: domain.RoleAssistant, Text: out.Response},
	)
	session.IncrementMessageCount()
	s.record(ctx, session.ID, text, out.Response)

	if !bulleted && !out.ContainsRecommendations {
		out.Suggestions = s.suggester.Suggest(ctx, out.Response, session.History())
	}

	log.Info("message handled",
		"contains_recommendations", out.ContainsRecommendations,
		"asks_for_email", out.AsksForEmail,
		"suggestions", len(out.Suggestions))

	return out, nil
}

// polish applies the reply post-processing used for regular turns.
func (s *Service) polish(reply string) string {
	reply = s.classifier.StripGreeting(reply)
	bulleted := HasBullets(reply)
	if s.cfg.SingleParagraph {
		reply = CollapseWhitespace(reply)
	}
	if s.cfg.RequireQuestion && !bulleted {
		reply = s.classifier.EnsureQuestion(reply)
	}
	return reply
}

// complete calls the model and maps failures onto the error taxonomy.
func (s *Service) complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	reply, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) {
			return "", domain.Unavailable("the model is unavailable, please retry later", err)
		}
		return "", domain.Processing("model call failed", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", domain.Processing("model returned an empty reply", nil)
	}
	return reply, nil
}

// record hands the exchange to the recorder without blocking the caller.
func (s *Service) record(ctx context.Context, id domain.SessionID, userMessage, aiResponse string) {
	if s.recorder == nil {
		return
	}

	exchange := &domain.Exchange{
		ID:          domain.ExchangeID(uuid.Must(uuid.NewV7()).String()),
		SessionID:   id,
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		CreatedAt:   s.now(),
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
		defer cancel()

		if err := s.recorder.RecordExchange(ctx, exchange); err != nil {
			observability.LoggerFromContext(ctx).Error("failed to persist exchange",
				"session_id", id,
				"exchange_id", exchange.ID,
				"error", err)
		}
	}()
}

// Close waits for pending persistence writes or until ctx is done.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset forgets a conversation. Unknown ids succeed.
func (s *Service) Reset(ctx context.Context, id domain.SessionID) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return domain.Processing("session reset failed", err)
	}
	observability.LoggerFromContext(ctx).Info("conversation reset", "session_id", id)
	return nil
}

// Suggest proposes replies for free text typed by the user.
func (s *Service) Suggest(ctx context.Context, input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, domain.Validation("input is required")
	}
	return s.suggester.Suggest(ctx, input, nil), nil
}

// History returns the persisted exchanges of a conversation, oldest first.
func (s *Service) History(ctx context.Context, id domain.SessionID, limit int) ([]*domain.Exchange, error) {
	if id == "" {
		return nil, domain.Validation("conversation id is required")
	}
	if s.recorder == nil {
		return []*domain.Exchange{}, nil
	}

	exchanges, err := s.recorder.ListExchanges(ctx, id, limit)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list exchanges", "session_id", id, "error", err)
		return nil, domain.Processing("failed to load conversation", err)
	}
	return exchanges, nil
}

// Summary asks the model for a recap of the persisted conversation.
func (s *Service) Summary(ctx context.Context, id domain.SessionID) (string, error) {
	exchanges, err := s.History(ctx, id, 0)
	if err != nil {
		return "", err
	}
	if len(exchanges) == 0 {
		return "", domain.NotFound("no conversation found for this id")
	}
	return s.summarizer.Summarize(ctx, exchanges)
}

// resolveContext prefers the explicit context, then a JSON object in the message.
func resolveContext(explicit *domain.SessionContext, message string) domain.SessionContext {
	if explicit != nil && !explicit.IsZero() {
		return *explicit
	}

	var parsed domain.SessionContext
	if err := json.Unmarshal([]byte(message), &parsed); err == nil {
		return parsed
	}
	return domain.SessionContext{}
}
