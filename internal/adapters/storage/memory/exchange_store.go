package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// ExchangeStore keeps persisted exchanges in process memory.
type ExchangeStore struct {
	mu        sync.RWMutex
	exchanges map[domain.SessionID][]*domain.Exchange
}

func NewExchangeStore() *ExchangeStore {
	return &ExchangeStore{
		exchanges: make(map[domain.SessionID][]*domain.Exchange),
	}
}

func (s *ExchangeStore) RecordExchange(_ context.Context, exchange *domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *exchange
	list := s.exchanges[exchange.SessionID]
	// writes may land out of order, keep the list sorted by creation time
	i := sort.Search(len(list), func(i int) bool { return list[i].CreatedAt.After(cp.CreatedAt) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = &cp
	s.exchanges[exchange.SessionID] = list
	return nil
}

func (s *ExchangeStore) ListExchanges(_ context.Context, sessionID domain.SessionID, limit int) ([]*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.exchanges[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]*domain.Exchange, len(all))
	copy(out, all)
	return out, nil
}
