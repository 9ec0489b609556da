// Package sqlstore persists exchanges in a relational "conversations" table.
// PostgreSQL (lib/pq) is the production backend; SQLite (modernc) serves
// single-node deployments and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	// Import the pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
)

// Dialect covers the few differences between the supported engines.
type Dialect struct {
	Driver string
	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{
		Driver:      "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	SQLite = Dialect{
		Driver:      "sqlite",
		Placeholder: func(int) string { return "?" },
	}
)

// DialectFor maps a storage backend name to its dialect.
func DialectFor(backend string) (Dialect, error) {
	switch backend {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, errors.Errorf("unsupported sql backend: %q", backend)
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	user_message TEXT NOT NULL,
	ai_response  TEXT NOT NULL,
	created_at   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations (session_id, created_at);
`

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect.Driver)
	}

	if dialect.Driver == SQLite.Driver {
		// in-memory databases live per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to ping %s database", dialect.Driver)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate conversations table")
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordExchange(ctx context.Context, e *domain.Exchange) error {
	p := s.dialect.Placeholder
	query := fmt.Sprintf(
		"INSERT INTO conversations (id, session_id, user_message, ai_response, created_at) VALUES (%s, %s, %s, %s, %s)",
		p(1), p(2), p(3), p(4), p(5),
	)

	_, err := s.db.ExecContext(ctx, query,
		string(e.ID), string(e.SessionID), e.UserMessage, e.AIResponse, e.CreatedAt.UnixMilli())
	if err != nil {
		return errors.Wrap(err, "failed to insert exchange")
	}
	return nil
}

// ListExchanges returns the latest limit exchanges (all when limit <= 0), oldest first.
func (s *Store) ListExchanges(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Exchange, error) {
	p := s.dialect.Placeholder
	query := fmt.Sprintf(
		"SELECT id, session_id, user_message, ai_response, created_at FROM conversations WHERE session_id = %s ORDER BY created_at DESC, id DESC",
		p(1),
	)
	args := []any{string(sessionID)}
	if limit > 0 {
		query += " LIMIT " + p(2)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list exchanges")
	}
	defer rows.Close()

	list := []*domain.Exchange{}
	for rows.Next() {
		var (
			e         domain.Exchange
			id, sid   string
			createdAt int64
		)
		if err := rows.Scan(&id, &sid, &e.UserMessage, &e.AIResponse, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan exchange")
		}
		e.ID = domain.ExchangeID(id)
		e.SessionID = domain.SessionID(sid)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		list = append(list, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate exchanges")
	}

	slices.Reverse(list)
	return list, nil
}
