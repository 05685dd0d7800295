package triggers

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema_sqlite.sql
var sqliteDDL string

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps triggers in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
	m  *matcher
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db, m: newMatcher()}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, t Trigger) (Trigger, error) {
	if err := validate(t); err != nil {
		return Trigger{}, err
	}
	t.CreatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO triggers (pattern, chat_id, message_id, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.Pattern, t.ChatID, t.MessageID, t.Response, t.CreatedAt.Unix())
	if err != nil {
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && isConstraint(sqlErr.Code()) {
			return Trigger{}, ErrDuplicate
		}
		return Trigger{}, fmt.Errorf("insert trigger: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return Trigger{}, fmt.Errorf("insert trigger: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, chatID int64) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, chat_id, message_id, response, created_at
		 FROM triggers WHERE chat_id IS NULL OR chat_id = ? ORDER BY id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var (
			t         Trigger
			chat, msg sql.NullInt64
			created   int64
		)
		if err := rows.Scan(&t.ID, &t.Pattern, &chat, &msg, &t.Response, &created); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		if chat.Valid {
			t.ChatID = &chat.Int64
		}
		if msg.Valid {
			t.MessageID = &msg.Int64
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Match(ctx context.Context, chatID int64, text string) ([]Trigger, error) {
	candidates, err := s.List(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.m.filter(candidates, text), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraint matches SQLITE_CONSTRAINT_UNIQUE and, when extended codes are
// off, the primary SQLITE_CONSTRAINT it reduces to.
func isConstraint(code int) bool {
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code&0xff == sqlite3.SQLITE_CONSTRAINT
}
