package firestore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// Store persists exchanges under conversations/{session_id}/exchanges/{exchange_id}.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) conversationDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.client.Collection("conversations").Doc(string(id))
}

func (s *Store) exchangesCol(id domain.SessionID) *firestore.CollectionRef {
	return s.conversationDoc(id).Collection("exchanges")
}

type exchangeDoc struct {
	SessionID   string    `firestore:"session_id"`
	UserMessage string    `firestore:"user_message"`
	AIResponse  string    `firestore:"ai_response"`
	CreatedAt   time.Time `firestore:"created_at"`
}

// RecordExchange writes the exchange and bumps the parent conversation in one batch.
func (s *Store) RecordExchange(ctx context.Context, e *domain.Exchange) error {
	doc := exchangeDoc{
		SessionID:   string(e.SessionID),
		UserMessage: e.UserMessage,
		AIResponse:  e.AIResponse,
		CreatedAt:   e.CreatedAt,
	}

	batch := s.client.Batch()
	batch.Create(s.exchangesCol(e.SessionID).Doc(string(e.ID)), doc)
	batch.Set(s.conversationDoc(e.SessionID), map[string]interface{}{
		"last_activity": e.CreatedAt,
		"exchanges":     firestore.Increment(1),
	}, firestore.MergeAll)

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("firestore RecordExchange: %w", err)
	}
	return nil
}

// ListExchanges returns the latest limit exchanges (all when limit <= 0), oldest first.
func (s *Store) ListExchanges(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Exchange, error) {
	if _, err := s.conversationDoc(sessionID).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return []*domain.Exchange{}, nil
		}
		return nil, fmt.Errorf("firestore ListExchanges: %w", err)
	}

	q := s.exchangesCol(sessionID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var result []*domain.Exchange
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListExchanges iter: %w", err)
		}

		var doc exchangeDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore ListExchanges decode: %w", err)
		}

		result = append(result, &domain.Exchange{
			ID:          domain.ExchangeID(snap.Ref.ID),
			SessionID:   domain.SessionID(doc.SessionID),
			UserMessage: doc.UserMessage,
			AIResponse:  doc.AIResponse,
			CreatedAt:   doc.CreatedAt,
		})
	}

	slices.Reverse(result)
	return result, nil
}
