package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/coopleo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

func TestExchangeStoreListsInOrder(t *testing.T) {
	store := memory.NewExchangeStore()
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, store.RecordExchange(ctx, &domain.Exchange{
			ID:          domain.ExchangeID(msg),
			SessionID:   "s-1",
			UserMessage: msg,
			AIResponse:  "re: " + msg,
			CreatedAt:   time.Now(),
		}))
	}

	all, err := store.ListExchanges(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].UserMessage)

	last, err := store.ListExchanges(ctx, "s-1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].UserMessage)
	assert.Equal(t, "three", last[1].UserMessage)

	none, err := store.ListExchanges(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
