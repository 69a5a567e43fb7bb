package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byNolo/nolofication/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSession_UpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &domain.Session{
		ChatID:      100,
		AccessToken: "tok",
		User:        domain.User{ID: 1, Username: "sam", Role: "admin"},
		ExpiresAt:   &exp,
		HookID:      "hook-1",
	}
	require.NoError(t, repo.UpsertSession(ctx, s))

	got, err := repo.GetSession(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
	assert.Equal(t, "sam", got.User.Username)
	assert.True(t, got.User.IsAdmin())
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(exp))
	assert.Nil(t, got.NextPollAt)
	assert.False(t, got.CreatedAt.IsZero())

	byHook, err := repo.GetSessionByHook(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), byHook.ChatID)

	require.NoError(t, repo.DeleteSession(ctx, 100))
	_, err = repo.GetSession(ctx, 100)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, repo.DeleteSession(ctx, 100))
}

func TestSession_RequiresHook(t *testing.T) {
	repo := openTestRepo(t)
	assert.Error(t, repo.UpsertSession(context.Background(), &domain.Session{ChatID: 1, AccessToken: "x"}))
	assert.Error(t, repo.UpsertSession(context.Background(), nil))
}

func TestSession_ReloginKeepsCursor(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	require.NoError(t, repo.UpsertSession(ctx, &domain.Session{ChatID: 5, AccessToken: "a", HookID: "h5"}))
	require.NoError(t, repo.SetPollState(ctx, 5, time.Now(), 77))
	require.NoError(t, repo.UpsertSession(ctx, &domain.Session{ChatID: 5, AccessToken: "b", HookID: "h5"}))

	got, err := repo.GetSession(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "b", got.AccessToken)
	assert.Equal(t, int64(77), got.LastSeenID)
}

func TestListDue_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	polls := map[int64]*time.Time{
		1: ptr(now.Add(-time.Minute)),
		2: ptr(now.Add(-time.Hour)),
		3: ptr(now.Add(time.Hour)),
		4: nil,
	}
	for id, next := range polls {
		require.NoError(t, repo.UpsertSession(ctx, &domain.Session{
			ChatID: id, AccessToken: "t", HookID: "h" + string(rune('0'+id)), NextPollAt: next,
		}))
	}

	due, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(2), due[0].ChatID)
	assert.Equal(t, int64(1), due[1].ChatID)

	due, err = repo.ListDue(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestSetPollState_CursorNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	require.NoError(t, repo.UpsertSession(ctx, &domain.Session{ChatID: 9, AccessToken: "t", HookID: "h9"}))

	next := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetPollState(ctx, 9, next, 50))
	require.NoError(t, repo.SetPollState(ctx, 9, next.Add(time.Minute), 10))

	got, err := repo.GetSession(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.LastSeenID)
	require.NotNil(t, got.NextPollAt)
	assert.True(t, got.NextPollAt.Equal(next.Add(time.Minute)))
}

func TestAuthState_SingleUseAndExpiry(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveAuthState(ctx, "s1", 42, now.Add(10*time.Minute)))
	chatID, err := repo.ConsumeAuthState(ctx, "s1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), chatID)

	_, err = repo.ConsumeAuthState(ctx, "s1", now)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SaveAuthState(ctx, "s2", 43, now.Add(-time.Second)))
	_, err = repo.ConsumeAuthState(ctx, "s2", now)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SaveAuthState(ctx, "s3", 44, now.Add(-time.Second)))
	require.NoError(t, repo.SaveAuthState(ctx, "s4", 45, now.Add(time.Hour)))
	n, err := repo.PurgeAuthStates(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMigrations_Idempotent(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, RunMigrations(context.Background(), repo.db))
}

func ptr(t time.Time) *time.Time { return &t }
