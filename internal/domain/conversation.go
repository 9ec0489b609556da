package domain

import (
	"strings"
	"sync"
)

// Turn is one immutable entry in a session's history.
type Turn struct {
	Role Role
	Text string
}

// SessionContext holds the variables supplied once at session start.
type SessionContext struct {
	State    string `json:"state"`
	Mood     string `json:"mood"`
	Location string `json:"location"`
	Topic    string `json:"topic"`
}

// Normalized returns a copy where every missing field is set to UnknownValue.
func (c SessionContext) Normalized() SessionContext {
	orUnknown := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return UnknownValue
		}
		return s
	}
	return SessionContext{
		State:    orUnknown(c.State),
		Mood:     orUnknown(c.Mood),
		Location: orUnknown(c.Location),
		Topic:    orUnknown(c.Topic),
	}
}

// IsZero reports whether no field was supplied.
func (c SessionContext) IsZero() bool {
	return strings.TrimSpace(c.State) == "" &&
		strings.TrimSpace(c.Mood) == "" &&
		strings.TrimSpace(c.Location) == "" &&
		strings.TrimSpace(c.Topic) == ""
}

// Session is a single ongoing conversation. Callers must hold the session lock
// (Lock/Unlock) for the whole turn they are handling; the accessors below do not
// lock on their own.
type Session struct {
	ID        SessionID
	CreatedAt Timestamp

	mu           sync.Mutex
	history      []Turn
	context      SessionContext
	contextSet   bool
	messageCount int
	name         string
	nameProvided bool
}

// NewSession allocates a session with an empty history and default context.
func NewSession(id SessionID, now Timestamp) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		context:   SessionContext{}.Normalized(),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// History returns a copy of the turns in insertion order.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// AppendTurns adds turns at the end of the history.
func (s *Session) AppendTurns(turns ...Turn) {
	s.history = append(s.history, turns...)
}

func (s *Session) Context() SessionContext { return s.context }

// SetContext stores the session context once. Later calls are ignored and
// return false so populated keys never revert.
func (s *Session) SetContext(c SessionContext) bool {
	if s.contextSet {
		return false
	}
	s.context = c.Normalized()
	s.contextSet = true
	return true
}

func (s *Session) MessageCount() int { return s.messageCount }

// IncrementMessageCount is called once per handled user message.
func (s *Session) IncrementMessageCount() { s.messageCount++ }

func (s *Session) NameProvided() bool { return s.nameProvided }
func (s *Session) Name() string       { return s.name }

// SetName records the user's name. It is a no-op once a name was captured.
func (s *Session) SetName(name string) {
	if s.nameProvided {
		return
	}
	s.name = strings.TrimSpace(name)
	s.nameProvided = true
}

// SkipNameCapture marks the session as not needing a name request.
func (s *Session) SkipNameCapture() { s.nameProvided = true }

// Exchange is one persisted user message / model reply pair.
type Exchange struct {
	ID          ExchangeID
	SessionID   SessionID
	UserMessage string
	AIResponse  string
	CreatedAt   Timestamp
}
