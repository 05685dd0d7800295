package triggers

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresDDL string

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps triggers in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	m    *matcher
	// owned pools are closed by Close.
	owned bool
}

// NewPostgres uses an existing pool. The caller owns the pool and closes it.
// Call Init before first use.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, m: newMatcher()}
}

// OpenPostgres connects to dsn and applies the schema. Close releases the
// pool.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := NewPostgres(pool)
	s.owned = true
	if err := s.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the table and index. Safe to call multiple times.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresDDL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, t Trigger) (Trigger, error) {
	if err := validate(t); err != nil {
		return Trigger{}, err
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO triggers (pattern, chat_id, message_id, response)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		t.Pattern, t.ChatID, t.MessageID, t.Response,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Trigger{}, ErrDuplicate
		}
		return Trigger{}, fmt.Errorf("insert trigger: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context, chatID int64) ([]Trigger, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pattern, chat_id, message_id, response, created_at
		 FROM triggers WHERE chat_id IS NULL OR chat_id = $1 ORDER BY id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Trigger, error) {
		var t Trigger
		err := row.Scan(&t.ID, &t.Pattern, &t.ChatID, &t.MessageID, &t.Response, &t.CreatedAt)
		t.CreatedAt = t.CreatedAt.UTC()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan trigger: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Match(ctx context.Context, chatID int64, text string) ([]Trigger, error) {
	candidates, err := s.List(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.m.filter(candidates, text), nil
}

func (s *PostgresStore) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}
