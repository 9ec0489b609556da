package agentflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// SuggestionPrompter builds the prompt asking for reply options.
type SuggestionPrompter interface {
	ComposeSuggestions(lastReply string, recent []domain.Turn, count, minWords, maxWords int) domain.Prompt
}

type SuggesterConfig struct {
	Enabled     bool
	Count       int
	MinWords    int
	MaxWords    int
	RecentTurns int // history turns given as context
}

// DefaultSuggesterConfig proposes up to 3 replies of 1 to 10 words.
func DefaultSuggesterConfig() SuggesterConfig {
	return SuggesterConfig{
		Enabled:     true,
		Count:       3,
		MinWords:    1,
		MaxWords:    10,
		RecentTurns: 4,
	}
}

// Suggester proposes short replies the user could send next.
// It never fails: any error degrades to an empty list.
type Suggester struct {
	llm     domain.LLMClient
	prompts SuggestionPrompter
	cfg     SuggesterConfig
}

func NewSuggester(llm domain.LLMClient, prompts SuggestionPrompter, cfg SuggesterConfig) *Suggester {
	if cfg.Count <= 0 {
		cfg.Count = 3
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 1
	}
	if cfg.MaxWords < cfg.MinWords {
		cfg.MaxWords = cfg.MinWords
	}
	return &Suggester{llm: llm, prompts: prompts, cfg: cfg}
}

func (s *Suggester) Name() string {
	return "suggester"
}

// Suggest returns at most cfg.Count suggestions, possibly none.
func (s *Suggester) Suggest(ctx context.Context, lastReply string, recent []domain.Turn) []string {
	if s == nil || !s.cfg.Enabled || s.llm == nil || strings.TrimSpace(lastReply) == "" {
		return []string{}
	}

	if n := s.cfg.RecentTurns; n >= 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	prompt := s.prompts.ComposeSuggestions(lastReply, recent, s.cfg.Count, s.cfg.MinWords, s.cfg.MaxWords)

	raw, err := run(ctx, s, func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, prompt)
	})
	if err != nil {
		return []string{}
	}

	return ParseSuggestions(raw, s.cfg.Count, s.cfg.MinWords, s.cfg.MaxWords)
}

var listPrefix = regexp.MustCompile(`^\s*(?:\d+\s*[.):-]|[-*•–])\s*`)

// ParseSuggestions extracts list items from a model answer, keeping at most
// limit items whose word count lies within [minWords, maxWords]. When any line
// carries a list marker, unmarked lines are commentary and are ignored.
func ParseSuggestions(raw string, limit, minWords, maxWords int) []string {
	out := []string{}
	seen := make(map[string]bool)

	lines := strings.Split(raw, "\n")
	listed := false
	for _, line := range lines {
		if listPrefix.MatchString(line) {
			listed = true
			break
		}
	}

	for _, line := range lines {
		if len(out) >= limit {
			break
		}
		if listed && !listPrefix.MatchString(line) {
			continue
		}

		text := strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		text = strings.Trim(text, "\"“”«» ")
		if text == "" || strings.HasSuffix(text, ":") {
			continue
		}

		words := len(strings.Fields(text))
		if words < minWords || words > maxWords {
			continue
		}

		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, text)
	}

	return out
}
