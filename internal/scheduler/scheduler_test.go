package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/store"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	msgs   []sent
	failOn int // fail the n-th send (1-based); 0 never fails
}

func (f *fakeSender) SendHTML(chatID int64, text string) error {
	if f.failOn > 0 && len(f.msgs)+1 == f.failOn {
		f.failOn = 0
		return errors.New("telegram down")
	}
	f.msgs = append(f.msgs, sent{chatID, text})
	return nil
}

// fakeInbox serves each token's notifications newest first, honouring
// limit and offset like the backend.
type fakeInbox struct {
	byToken map[string][]domain.Notification
	err     error
	calls   []api.ListOptions
}

func (f *fakeInbox) Notifications(_ context.Context, ts api.TokenSource, opts api.ListOptions) (domain.NotificationPage, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return domain.NotificationPage{}, f.err
	}
	all := f.byToken[ts.Token()]
	if opts.Offset >= len(all) {
		return domain.NotificationPage{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return domain.NotificationPage{Notifications: all}, nil
}

// newestFirst builds notifications with ids hi down to lo.
func newestFirst(hi, lo int64) []domain.Notification {
	var out []domain.Notification
	for id := hi; id >= lo; id-- {
		out = append(out, domain.Notification{ID: id, Title: fmt.Sprintf("n%d", id)})
	}
	return out
}

type fakeSessions struct {
	repo    store.Repo
	cleared []int64
}

func (f *fakeSessions) Clear(ctx context.Context, chatID int64) error {
	f.cleared = append(f.cleared, chatID)
	return f.repo.DeleteSession(ctx, chatID)
}

func (f *fakeSessions) DropIfUnauthorized(ctx context.Context, chatID int64, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	_ = f.Clear(ctx, chatID)
	return true
}

type fakePurger struct{ calls int }

func (f *fakePurger) Purge(context.Context) { f.calls++ }

var clock = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, inbox *fakeInbox, sender *fakeSender) (*Scheduler, *store.SQLiteRepo, *fakeSessions, *fakePurger) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "poll.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	sessions := &fakeSessions{repo: repo}
	purger := &fakePurger{}
	s := New(repo, inbox, sessions, purger, sender, zap.NewNop(), Options{Interval: time.Minute, SendRate: 1000})
	s.now = func() time.Time { return clock }
	return s, repo, sessions, purger
}

func addSession(t *testing.T, repo store.Repo, chatID int64, token string, lastSeen int64, expires *time.Time) {
	t.Helper()
	due := clock.Add(-time.Second)
	require.NoError(t, repo.UpsertSession(context.Background(), &domain.Session{
		ChatID:      chatID,
		AccessToken: token,
		HookID:      token + "-hook",
		CreatedAt:   clock.Add(-time.Hour),
		NextPollAt:  &due,
		LastSeenID:  lastSeen,
		ExpiresAt:   expires,
	}))
}

func TestTick_RelaysUnreadOldestFirst(t *testing.T) {
	inbox := &fakeInbox{byToken: map[string][]domain.Notification{
		"a": {
			{ID: 12, Title: "third"},
			{ID: 11, Title: "read", IsRead: true},
			{ID: 10, Title: "second"},
			{ID: 9, Title: "first"},
			{ID: 5, Title: "old"},
		},
	}}
	sender := &fakeSender{}
	s, repo, _, purger := setup(t, inbox, sender)
	addSession(t, repo, 1, "a", 8, nil)

	s.Tick(context.Background())

	require.Len(t, sender.msgs, 3)
	assert.Contains(t, sender.msgs[0].text, "first")
	assert.Contains(t, sender.msgs[1].text, "second")
	assert.Contains(t, sender.msgs[2].text, "third")
	assert.Equal(t, 1, purger.calls)

	got, err := repo.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.LastSeenID)
	require.NotNil(t, got.NextPollAt)
	assert.True(t, got.NextPollAt.Equal(clock.Add(time.Minute)))

	// Not due again until the interval passes.
	s.Tick(context.Background())
	assert.Len(t, sender.msgs, 3)
}

func TestTick_PagesBackToCursor(t *testing.T) {
	inbox := &fakeInbox{byToken: map[string][]domain.Notification{"a": newestFirst(125, 90)}}
	sender := &fakeSender{}
	s, repo, _, _ := setup(t, inbox, sender)
	addSession(t, repo, 1, "a", 100, nil)

	s.Tick(context.Background())

	require.Len(t, sender.msgs, 25)
	assert.Contains(t, sender.msgs[0].text, "n101")
	assert.Contains(t, sender.msgs[24].text, "n125")
	require.Len(t, inbox.calls, 2)
	assert.Equal(t, 20, inbox.calls[1].Offset)

	got, err := repo.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(125), got.LastSeenID)
}

func TestTick_UnknownCursorIsMeasuredFirst(t *testing.T) {
	inbox := &fakeInbox{byToken: map[string][]domain.Notification{"a": newestFirst(30, 1)}}
	sender := &fakeSender{}
	s, repo, _, _ := setup(t, inbox, sender)
	addSession(t, repo, 1, "a", domain.CursorUnknown, nil)

	s.Tick(context.Background())

	assert.Empty(t, sender.msgs)
	got, err := repo.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.LastSeenID)
}

func TestTick_StopsAtFailedSend(t *testing.T) {
	inbox := &fakeInbox{byToken: map[string][]domain.Notification{
		"a": {{ID: 3}, {ID: 2}, {ID: 1}},
	}}
	sender := &fakeSender{failOn: 2}
	s, repo, _, _ := setup(t, inbox, sender)
	addSession(t, repo, 1, "a", 0, nil)

	s.Tick(context.Background())

	assert.Len(t, sender.msgs, 1)
	got, err := repo.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LastSeenID)
}

func TestTick_UnauthorizedEndsSession(t *testing.T) {
	inbox := &fakeInbox{err: &api.Error{Message: "Invalid token", Status: http.StatusUnauthorized}}
	sender := &fakeSender{}
	s, repo, sessions, _ := setup(t, inbox, sender)
	addSession(t, repo, 7, "a", 0, nil)

	s.Tick(context.Background())

	assert.Equal(t, []int64{7}, sessions.cleared)
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, SessionEndedText, sender.msgs[0].text)
	_, err := repo.GetSession(context.Background(), 7)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTick_TransientErrorReschedules(t *testing.T) {
	inbox := &fakeInbox{err: &api.Error{Message: "Request failed", Status: 0}}
	sender := &fakeSender{}
	s, repo, sessions, _ := setup(t, inbox, sender)
	addSession(t, repo, 7, "a", 4, nil)

	s.Tick(context.Background())

	assert.Empty(t, sessions.cleared)
	assert.Empty(t, sender.msgs)
	got, err := repo.GetSession(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.LastSeenID)
	assert.True(t, got.NextPollAt.After(clock))
}

func TestTick_ExpiredTokenCleared(t *testing.T) {
	inbox := &fakeInbox{}
	sender := &fakeSender{}
	s, repo, sessions, _ := setup(t, inbox, sender)
	past := clock.Add(-time.Minute)
	addSession(t, repo, 9, "a", 0, &past)

	s.Tick(context.Background())

	assert.Equal(t, []int64{9}, sessions.cleared)
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, int64(9), sender.msgs[0].chatID)
}

func TestRun_DisabledReturns(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, zap.NewNop(), Options{})
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with polling disabled")
	}
}
