package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/coopleo-agent/internal/adapters/storage/firestore"
	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// Runs against the Firestore emulator only.
func newEmulatorStore(t *testing.T) *firestore.Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	store, err := firestore.NewStore(context.Background(), "coopleo-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := firestore.NewStore(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "projectID")
}

func TestRecordAndListExchanges(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	sessionID := domain.SessionID(uuid.NewString())
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, msg := range []string{"one", "two", "three"} {
		require.NoError(t, store.RecordExchange(ctx, &domain.Exchange{
			ID:          domain.ExchangeID(uuid.NewString()),
			SessionID:   sessionID,
			UserMessage: msg,
			AIResponse:  "re: " + msg,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := store.ListExchanges(ctx, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].UserMessage)
	assert.Equal(t, "re: three", all[2].AIResponse)

	last, err := store.ListExchanges(ctx, sessionID, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "three", last[0].UserMessage)

	none, err := store.ListExchanges(ctx, domain.SessionID(uuid.NewString()), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
