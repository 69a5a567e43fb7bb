package store

import (
	"context"
	"errors"
	"time"

	"github.com/byNolo/nolofication/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for chat sessions and sign-in state.
type Repo interface {
	UpsertSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, chatID int64) (*domain.Session, error)
	GetSessionByHook(ctx context.Context, hookID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, chatID int64) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Session, error)
	SetPollState(ctx context.Context, chatID int64, next time.Time, lastSeenID int64) error

	SaveAuthState(ctx context.Context, state string, chatID int64, expiresAt time.Time) error
	// ConsumeAuthState deletes the state and returns its chat. Expired or
	// unknown states yield ErrNotFound.
	ConsumeAuthState(ctx context.Context, state string, now time.Time) (int64, error)
	PurgeAuthStates(ctx context.Context, now time.Time) (int64, error)

	Close() error
}
