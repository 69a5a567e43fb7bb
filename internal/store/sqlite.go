package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/byNolo/nolofication/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const sessionColumns = `chat_id, access_token, user_json, expires_at, hook_id,
	created_at, next_poll_at, last_seen_id`

// UpsertSession inserts or replaces the session of a chat. The poll cursor
// survives a re-login so already relayed notifications are not sent twice.
func (r *SQLiteRepo) UpsertSession(ctx context.Context, s *domain.Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	if s.HookID == "" {
		return errors.New("session without hook id")
	}

	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	created := s.CreatedAt.UTC().Unix()
	if s.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			access_token = excluded.access_token,
			user_json    = excluded.user_json,
			expires_at   = excluded.expires_at,
			hook_id      = excluded.hook_id,
			next_poll_at = excluded.next_poll_at,
			last_seen_id = MAX(sessions.last_seen_id, excluded.last_seen_id)`,
		s.ChatID, s.AccessToken, string(userJSON), nullUnix(s.ExpiresAt), s.HookID,
		created, nullUnix(s.NextPollAt), s.LastSeenID,
	)
	return err
}

// GetSession returns the session of a chat or ErrNotFound.
func (r *SQLiteRepo) GetSession(ctx context.Context, chatID int64) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE chat_id = ?`, chatID)
	return scanSession(row)
}

// GetSessionByHook resolves a webhook relay id to its session.
func (r *SQLiteRepo) GetSessionByHook(ctx context.Context, hookID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE hook_id = ?`, hookID)
	return scanSession(row)
}

// DeleteSession signs a chat out. Deleting a missing session is not an error.
func (r *SQLiteRepo) DeleteSession(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID)
	return err
}

// ListDue returns up to `limit` sessions whose next_poll_at is <= now,
// ordered by next_poll_at ascending.
func (r *SQLiteRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE next_poll_at IS NOT NULL
		  AND next_poll_at <= ?
		ORDER BY next_poll_at ASC
		LIMIT ?`,
		now.UTC().Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// SetPollState updates next_poll_at and the last relayed notification id.
func (r *SQLiteRepo) SetPollState(ctx context.Context, chatID int64, next time.Time, lastSeenID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET next_poll_at = ?, last_seen_id = MAX(last_seen_id, ?)
		WHERE chat_id = ?`,
		next.UTC().Unix(), lastSeenID, chatID,
	)
	return err
}

// SaveAuthState stores a one-time OAuth state for a chat.
func (r *SQLiteRepo) SaveAuthState(ctx context.Context, state string, chatID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_states (state, chat_id, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(state) DO UPDATE SET
			chat_id    = excluded.chat_id,
			expires_at = excluded.expires_at`,
		state, chatID, expiresAt.UTC().Unix(),
	)
	return err
}

func (r *SQLiteRepo) ConsumeAuthState(ctx context.Context, state string, now time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		chatID    int64
		expiresAt int64
	)
	err = tx.QueryRowContext(ctx, `SELECT chat_id, expires_at FROM auth_states WHERE state = ?`, state).
		Scan(&chatID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_states WHERE state = ?`, state); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if now.UTC().Unix() >= expiresAt {
		return 0, ErrNotFound
	}
	return chatID, nil
}

// PurgeAuthStates removes expired states and returns how many were dropped.
func (r *SQLiteRepo) PurgeAuthStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_states WHERE expires_at <= ?`, now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(sc rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		userJSON  string
		expires   sql.NullInt64
		createdAt int64
		nextPoll  sql.NullInt64
	)
	err := sc.Scan(
		&s.ChatID, &s.AccessToken, &userJSON, &expires, &s.HookID,
		&createdAt, &nextPoll, &s.LastSeenID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(userJSON), &s.User); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	s.ExpiresAt = unixPtr(expires)
	s.NextPollAt = unixPtr(nextPoll)
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &s, nil
}

// nullUnix stores an optional instant as unix seconds.
func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}
