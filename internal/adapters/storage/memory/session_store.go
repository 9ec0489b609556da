package memory

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
	"github.com/PabloGalante/coopleo-agent/internal/observability"
)

const shardCount = 16

// SessionConfig bounds the repository. Zero values disable the matching limit.
type SessionConfig struct {
	TTL         time.Duration
	MaxSessions int
}

type entry struct {
	session  *domain.Session
	lastSeen time.Time
	element  *list.Element
}

type shard struct {
	mu       sync.Mutex
	capacity int
	sessions map[domain.SessionID]*entry
	order    *list.List // front = most recently used
}

// SessionStore is an in-memory domain.SessionRepository. Sessions are spread
// over shards so unrelated conversations never contend on the same lock.
type SessionStore struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]*shard
}

func NewSessionStore(cfg SessionConfig, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}

	perShard := 0
	if cfg.MaxSessions > 0 {
		perShard = (cfg.MaxSessions + shardCount - 1) / shardCount
	}

	s := &SessionStore{ttl: cfg.TTL, now: now}
	for i := range s.shards {
		s.shards[i] = &shard{
			capacity: perShard,
			sessions: make(map[domain.SessionID]*entry),
			order:    list.New(),
		}
	}
	return s
}

func (s *SessionStore) shardFor(id domain.SessionID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *SessionStore) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

// GetOrCreate implements domain.SessionRepository.
func (s *SessionStore) GetOrCreate(ctx context.Context, id domain.SessionID) (*domain.Session, bool, error) {
	if id != "" {
		sh := s.shardFor(id)
		now := s.now()

		sh.mu.Lock()
		e, ok := sh.sessions[id]
		if ok && s.expired(e, now) {
			sh.remove(e)
			observability.SessionsEvicted.WithLabelValues("ttl").Inc()
			ok = false
		}
		if ok {
			e.lastSeen = now
			sh.order.MoveToFront(e.element)
			sh.mu.Unlock()
			return e.session, false, nil
		}
		sh.mu.Unlock()
	}

	sess, err := s.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Create implements domain.SessionRepository.
func (s *SessionStore) Create(ctx context.Context) (*domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := domain.NewSession(domain.SessionID(id.String()), now)

	sh := s.shardFor(sess.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.capacity > 0 {
		for len(sh.sessions) >= sh.capacity {
			oldest := sh.order.Back()
			if oldest == nil {
				break
			}
			sh.remove(oldest.Value.(*entry))
			observability.SessionsEvicted.WithLabelValues("capacity").Inc()
			observability.LoggerFromContext(ctx).Debug("session evicted", "reason", "capacity")
		}
	}

	e := &entry{session: sess, lastSeen: now}
	e.element = sh.order.PushFront(e)
	sh.sessions[sess.ID] = e
	observability.SessionsActive.Inc()

	return sess, nil
}

// Delete implements domain.SessionRepository. Unknown ids are ignored.
func (s *SessionStore) Delete(_ context.Context, id domain.SessionID) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.sessions[id]; ok {
		sh.remove(e)
	}
	return nil
}

func (s *SessionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// Sweep removes every session idle for longer than the TTL and returns how many were removed.
func (s *SessionStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		// oldest entries sit at the back
		for el := sh.order.Back(); el != nil; {
			e := el.Value.(*entry)
			if !s.expired(e, now) {
				break
			}
			prev := el.Prev()
			sh.remove(e)
			removed++
			el = prev
		}
		sh.mu.Unlock()
	}

	if removed > 0 {
		observability.SessionsEvicted.WithLabelValues("ttl").Add(float64(removed))
	}
	return removed
}

// Janitor runs Sweep every interval until ctx is done.
func (s *SessionStore) Janitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || s.ttl <= 0 {
		<-ctx.Done()
		return nil
	}

	log := observability.LoggerFromContext(ctx).With("component", "session_janitor")
	log.Info("session janitor started", "interval", interval, "ttl", s.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session janitor stopped")
			return nil
		case <-ticker.C:
			if removed := s.Sweep(s.now()); removed > 0 {
				log.Info("expired sessions removed", "removed", removed, "remaining", s.Len())
			}
		}
	}
}

func (sh *shard) remove(e *entry) {
	sh.order.Remove(e.element)
	delete(sh.sessions, e.session.ID)
	observability.SessionsActive.Dec()
}
