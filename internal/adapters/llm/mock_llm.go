package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// MockLLM is an offline provider for local development.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(_ context.Context, prompt domain.Prompt) (string, error) {
	var last string
	if n := len(prompt.Messages); n > 0 {
		last = prompt.Messages[n-1].Text
	}
	return fmt.Sprintf("I hear you. You said %q. How does that make you feel?", last), nil
}

// ScriptedLLM answers through a caller-supplied function and records every prompt.
type ScriptedLLM struct {
	Respond func(call int, prompt domain.Prompt) (string, error)

	mu      sync.Mutex
	prompts []domain.Prompt
}

func NewScriptedLLM(respond func(call int, prompt domain.Prompt) (string, error)) *ScriptedLLM {
	return &ScriptedLLM{Respond: respond}
}

func (s *ScriptedLLM) Complete(_ context.Context, prompt domain.Prompt) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	call := len(s.prompts)
	s.mu.Unlock()

	if s.Respond == nil {
		return "", nil
	}
	return s.Respond(call, prompt)
}

// Prompts returns every prompt received so far, in call order.
func (s *ScriptedLLM) Prompts() []domain.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Prompt, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}
