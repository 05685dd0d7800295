// Package triggers stores regular-expression triggers for bots and matches
// incoming text against them.
//
// A trigger is either global (ChatID nil) or scoped to one chat. When it
// fires the bot answers with its Response, or forwards MessageID from the
// trigger's chat when that is set.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when deleting a trigger that does not exist.
	ErrNotFound = errors.New("triggers: not found")
	// ErrDuplicate is returned when the pattern already exists in the same scope.
	ErrDuplicate = errors.New("triggers: pattern already exists")
	// ErrInvalidPattern wraps regexp compilation errors.
	ErrInvalidPattern = errors.New("triggers: invalid pattern")
)

// Trigger is one stored pattern.
type Trigger struct {
	ID      int64
	Pattern string
	// ChatID scopes the trigger to one chat. Nil means every chat.
	ChatID *int64
	// MessageID is forwarded from ChatID when the trigger fires.
	MessageID *int64
	Response  string
	CreatedAt time.Time
}

// Global reports whether the trigger applies to every chat.
func (t Trigger) Global() bool { return t.ChatID == nil }

// Store persists triggers.
type Store interface {
	// Add validates and stores t, returning it with ID and CreatedAt set.
	Add(ctx context.Context, t Trigger) (Trigger, error)
	// List returns the global triggers plus those scoped to chatID, oldest
	// first.
	List(ctx context.Context, chatID int64) ([]Trigger, error)
	// Delete removes the trigger with the given id.
	Delete(ctx context.Context, id int64) error
	// Match returns the triggers visible in chatID whose pattern matches text.
	Match(ctx context.Context, chatID int64, text string) ([]Trigger, error)
	Close() error
}

// Open picks the backend from dsn: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(ctx, dsn)
}

func validate(t Trigger) error {
	if strings.TrimSpace(t.Pattern) == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if _, err := regexp.Compile(t.Pattern); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if t.MessageID != nil && t.ChatID == nil {
		return fmt.Errorf("%w: message_id requires chat_id", ErrInvalidPattern)
	}
	return nil
}

// matcher caches compiled patterns. Stored patterns were validated on Add,
// but a row written by another tool may still fail to compile; such rows
// never match.
type matcher struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func newMatcher() *matcher {
	return &matcher{cache: make(map[string]*regexp.Regexp)}
}

func (m *matcher) compile(pattern string) *regexp.Regexp {
	m.mu.RLock()
	re, ok := m.cache[pattern]
	m.mu.RUnlock()
	if ok {
		return re
	}

	re, _ = regexp.Compile(pattern)
	m.mu.Lock()
	m.cache[pattern] = re
	m.mu.Unlock()
	return re
}

func (m *matcher) filter(candidates []Trigger, text string) []Trigger {
	var out []Trigger
	for _, t := range candidates {
		if re := m.compile(t.Pattern); re != nil && re.MatchString(text) {
			out = append(out, t)
		}
	}
	return out
}
