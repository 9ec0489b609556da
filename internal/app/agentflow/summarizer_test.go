package agentflow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/coopleo-agent/internal/adapters/llm"
	"github.com/PabloGalante/coopleo-agent/internal/app/agentflow"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

var exchanges = []*domain.Exchange{
	{UserMessage: "We argue about chores", AIResponse: "What happens when you argue?"},
}

func TestSummarize(t *testing.T) {
	fake := llm.NewScriptedLLM(func(int, domain.Prompt) (string, error) {
		return "  The user discussed chores.  ", nil
	})

	got, err := agentflow.NewSummarizer(fake, newComposer()).Summarize(context.Background(), exchanges)
	require.NoError(t, err)
	assert.Equal(t, "The user discussed chores.", got)
	assert.Contains(t, fake.Prompts()[0].Messages[0].Text, "User: We argue about chores")
}

func TestSummarizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		client domain.LLMClient
		input  []*domain.Exchange
		want   domain.ErrorKind
	}{
		{
			name:   "no client",
			client: nil,
			input:  exchanges,
			want:   domain.KindServiceUnavailable,
		},
		{
			name:   "no exchanges",
			client: llm.NewScriptedLLM(nil),
			input:  nil,
			want:   domain.KindValidation,
		},
		{
			name: "retries exhausted",
			client: llm.NewScriptedLLM(func(int, domain.Prompt) (string, error) {
				return "", fmt.Errorf("%w: timeout", domain.ErrModelUnavailable)
			}),
			input: exchanges,
			want:  domain.KindServiceUnavailable,
		},
		{
			name: "model error",
			client: llm.NewScriptedLLM(func(int, domain.Prompt) (string, error) {
				return "", errors.New("bad request")
			}),
			input: exchanges,
			want:  domain.KindModelProcessing,
		},
		{
			name:   "empty summary",
			client: llm.NewScriptedLLM(nil),
			input:  exchanges,
			want:   domain.KindModelProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agentflow.NewSummarizer(tt.client, newComposer()).Summarize(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}
