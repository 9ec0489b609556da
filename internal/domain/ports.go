package domain

import "context"

// Message is a single role-tagged entry of a prompt.
type Message struct {
	Role Role
	Text string
}

// Prompt is the exact payload sent to the model: a system instruction and the
// ordered conversation messages, the last one being the new input.
type Prompt struct {
	System   string
	Messages []Message
}

// LLMClient defines how the core application interacts with an LLM service.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// SessionRepository owns live conversation sessions.
type SessionRepository interface {
	// GetOrCreate returns the session for id. Unknown or empty ids yield a
	// brand-new session with a freshly generated id; created reports that case.
	GetOrCreate(ctx context.Context, id SessionID) (session *Session, created bool, err error)
	// Create always allocates a new session.
	Create(ctx context.Context) (*Session, error)
	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id SessionID) error
	Len() int
}

// ExchangeRecorder persists exchanges for audit and summaries.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, exchange *Exchange) error
	// ListExchanges returns exchanges oldest first. limit <= 0 means all.
	ListExchanges(ctx context.Context, sessionID SessionID, limit int) ([]*Exchange, error)
}
