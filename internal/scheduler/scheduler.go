// Package scheduler runs the inbox poller: it periodically checks every
// signed-in chat for new notifications and relays them into the chat.
package scheduler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/metrics"
	"github.com/byNolo/nolofication/internal/pushdisplay"
	"github.com/byNolo/nolofication/internal/store"
)

// SessionEndedText is sent when the poller finds a chat's sign-in no longer valid.
const SessionEndedText = "🔒 Your session has ended. Use /login to sign in again."

// Sender is a minimal interface the poller needs to post into a chat.
// telegram.Router implements it.
type Sender interface {
	SendHTML(chatID int64, text string) error
}

// Inbox lists a user's notifications.
type Inbox interface {
	Notifications(ctx context.Context, ts api.TokenSource, opts api.ListOptions) (domain.NotificationPage, error)
}

// Sessions drops sign-ins the backend no longer accepts.
type Sessions interface {
	Clear(ctx context.Context, chatID int64) error
	DropIfUnauthorized(ctx context.Context, chatID int64, err error) bool
}

// Purger removes stale sign-in state. Optional.
type Purger interface {
	Purge(ctx context.Context)
}

// maxPages bounds how far back one poll walks an inbox.
const maxPages = 50

type Options struct {
	Interval time.Duration // 0 disables polling
	Batch    int           // sessions per tick
	PageSize int           // notifications fetched per session
	SendRate float64       // messages per second across all chats
}

// Scheduler polls due sessions and relays unread notifications.
type Scheduler struct {
	repo     store.Repo
	inbox    Inbox
	sessions Sessions
	purger   Purger
	sender   Sender
	log      *zap.Logger
	opts     Options
	limiter  *rate.Limiter
	now      func() time.Time
}

func New(repo store.Repo, inbox Inbox, sessions Sessions, purger Purger, sender Sender, log *zap.Logger, opts Options) *Scheduler {
	if opts.Batch <= 0 {
		opts.Batch = 50
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 20
	}
	return &Scheduler{
		repo:     repo,
		inbox:    inbox,
		sessions: sessions,
		purger:   purger,
		sender:   sender,
		log:      log,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.SendRate), 1),
		now:      time.Now,
	}
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.opts.Interval <= 0 {
		s.log.Info("inbox poller disabled")
		return
	}
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one polling cycle: find due sessions, relay, reschedule.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()
	if s.purger != nil {
		s.purger.Purge(ctx)
	}

	due, err := s.repo.ListDue(ctx, now, s.opts.Batch)
	if err != nil {
		s.log.Error("ListDue failed", zap.Error(err))
		return
	}
	for i := range due {
		if ctx.Err() != nil {
			return
		}
		s.poll(ctx, &due[i], now)
	}
}

func (s *Scheduler) poll(ctx context.Context, sess *domain.Session, now time.Time) {
	log := s.log.With(zap.Int64("chatID", sess.ChatID))

	if sess.Expired(now) {
		if err := s.sessions.Clear(ctx, sess.ChatID); err != nil {
			log.Error("clear expired session failed", zap.Error(err))
			return
		}
		s.notifyEnded(sess.ChatID, log)
		return
	}

	if sess.LastSeenID == domain.CursorUnknown {
		s.baseline(ctx, sess, now, log)
		return
	}

	fresh, err := s.collect(ctx, sess, log)
	if err != nil {
		s.fetchFailed(ctx, sess, now, err, log)
		return
	}

	seen := sess.LastSeenID
	for _, n := range fresh {
		if n.IsRead {
			seen = n.ID
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		if err := s.sender.SendHTML(sess.ChatID, pushdisplay.FromNotification(n).HTML()); err != nil {
			metrics.InboxDeliveries.WithLabelValues("failed").Inc()
			log.Warn("relay failed", zap.Error(err), zap.Int64("notification", n.ID))
			break
		}
		metrics.InboxDeliveries.WithLabelValues("sent").Inc()
		seen = n.ID
	}
	s.reschedule(ctx, sess.ChatID, now, seen, log)
}

// collect pages back through the inbox, newest first, until it reaches the
// cursor, and returns everything newer than it oldest first.
func (s *Scheduler) collect(ctx context.Context, sess *domain.Session, log *zap.Logger) ([]domain.Notification, error) {
	byID := make(map[int64]domain.Notification)
	offset := 0
	for pages := 0; ; pages++ {
		if pages == maxPages {
			log.Warn("inbox backlog truncated", zap.Int("relayed", len(byID)), zap.Int64("cursor", sess.LastSeenID))
			break
		}
		page, err := s.inbox.Notifications(ctx, sess, api.ListOptions{Limit: s.opts.PageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		reached := len(page.Notifications) < s.opts.PageSize
		for _, n := range page.Notifications {
			if n.ID <= sess.LastSeenID {
				reached = true
				continue
			}
			byID[n.ID] = n
		}
		if reached {
			break
		}
		offset += len(page.Notifications)
	}

	out := make([]domain.Notification, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// baseline sets the cursor of a session whose history was never measured,
// without relaying anything.
func (s *Scheduler) baseline(ctx context.Context, sess *domain.Session, now time.Time, log *zap.Logger) {
	page, err := s.inbox.Notifications(ctx, sess, api.ListOptions{Limit: 1})
	if err != nil {
		s.fetchFailed(ctx, sess, now, err, log)
		return
	}
	var newest int64
	for _, n := range page.Notifications {
		newest = max(newest, n.ID)
	}
	log.Debug("inbox cursor initialised", zap.Int64("cursor", newest))
	s.reschedule(ctx, sess.ChatID, now, newest, log)
}

func (s *Scheduler) fetchFailed(ctx context.Context, sess *domain.Session, now time.Time, err error, log *zap.Logger) {
	if s.sessions.DropIfUnauthorized(ctx, sess.ChatID, err) {
		s.notifyEnded(sess.ChatID, log)
		return
	}
	log.Warn("inbox fetch failed", zap.Error(err))
	s.reschedule(ctx, sess.ChatID, now, sess.LastSeenID, log)
}

func (s *Scheduler) reschedule(ctx context.Context, chatID int64, now time.Time, seen int64, log *zap.Logger) {
	if err := s.repo.SetPollState(ctx, chatID, now.Add(s.opts.Interval), seen); err != nil {
		log.Error("SetPollState failed", zap.Error(err))
	}
}

func (s *Scheduler) notifyEnded(chatID int64, log *zap.Logger) {
	if err := s.sender.SendHTML(chatID, SessionEndedText); err != nil {
		log.Warn("session ended notice failed", zap.Error(err))
	}
}
