package agentflow

import (
	"context"
	"strings"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// SummaryPrompter builds the prompt asking for a conversation summary.
type SummaryPrompter interface {
	ComposeSummary(exchanges []*domain.Exchange) domain.Prompt
}

// Summarizer condenses persisted exchanges into a short recap.
type Summarizer struct {
	llm     domain.LLMClient
	prompts SummaryPrompter
}

func NewSummarizer(llm domain.LLMClient, prompts SummaryPrompter) *Summarizer {
	return &Summarizer{llm: llm, prompts: prompts}
}

func (s *Summarizer) Name() string {
	return "summarizer"
}

func (s *Summarizer) Summarize(ctx context.Context, exchanges []*domain.Exchange) (string, error) {
	if s.llm == nil {
		return "", domain.Unavailable("model client is not initialized", domain.ErrModelUnavailable)
	}
	if len(exchanges) == 0 {
		return "", domain.Validation("no exchanges to summarize")
	}

	summary, err := run(ctx, s, func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, s.prompts.ComposeSummary(exchanges))
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindServiceUnavailable {
			return "", domain.Unavailable("model is unavailable", err)
		}
		return "", domain.Processing("summary generation failed", err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", domain.Processing("model returned an empty summary", nil)
	}
	return summary, nil
}
