package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/notification"
	"github.com/windwatch/windwatch-go/internal/observability"
)

// DigestScheduler periodically flushes accumulated email_digest
// notifications into one batched email per user. It shares no state with
// the evaluation loop beyond reading committed notification rows.
type DigestScheduler struct {
	ds       datastore.Interface
	email    notification.Sender
	metrics  *observability.Metrics
	settings *conf.Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewDigestScheduler creates the digest scheduler.
func NewDigestScheduler(ds datastore.Interface, email notification.Sender, metrics *observability.Metrics, settings *conf.Settings) *DigestScheduler {
	return &DigestScheduler{
		ds:       ds,
		email:    email,
		metrics:  metrics,
		settings: settings,
		logger:   getLoggerSafe("digest-scheduler"),
		now:      time.Now,
	}
}

// Start runs the flush loop until ctx is canceled. The check cadence is
// finer than the smallest configurable digest frequency (6h), so a due
// digest is never late by more than one check interval.
func (s *DigestScheduler) Start(ctx context.Context) {
	interval := s.settings.Alerting.DigestCheckInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("digest scheduler started", "check_interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("digest scheduler stopped")
			return
		case <-ticker.C:
			s.Flush(ctx, s.now())
		}
	}
}

// Flush sends one digest to every user whose digest is due and who has
// pending items. Users with nothing pending are skipped entirely; their
// last-digest marker is left alone so the next accumulated item is picked
// up as soon as it appears.
func (s *DigestScheduler) Flush(ctx context.Context, now time.Time) {
	if s.email == nil {
		return
	}

	prefs, err := s.ds.DigestCandidates()
	if err != nil {
		s.logger.Error("failed to list digest candidates", "error", err)
		return
	}

	for i := range prefs {
		pref := &prefs[i]
		if !s.due(pref, now) {
			continue
		}
		if err := s.flushUser(ctx, pref, now); err != nil {
			s.logger.Error("digest flush failed", "user_id", pref.UserID, "error", err)
		}
	}
}

// due reports whether the user's configured digest frequency has elapsed.
func (s *DigestScheduler) due(pref *datastore.NotificationPreference, now time.Time) bool {
	if pref.LastDigestAt == nil {
		return true
	}
	frequency := time.Duration(pref.DigestFrequencyHours) * time.Hour
	return now.Sub(*pref.LastDigestAt) >= frequency
}

func (s *DigestScheduler) flushUser(ctx context.Context, pref *datastore.NotificationPreference, now time.Time) error {
	pending, err := s.ds.PendingDigestNotifications(pref.UserID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil // no empty digests
	}

	summary := &datastore.Notification{
		UserID:   pref.UserID,
		Title:    fmt.Sprintf("WindWatch alert digest: %d new alerts", len(pending)),
		Message:  composeDigest(pending),
		Severity: maxSeverity(pending),
		Channel:  datastore.ChannelEmail,
	}
	if err := s.email.Send(ctx, summary); err != nil {
		// Leave the items pending; they ride the next flush.
		return err
	}

	ids := make([]string, 0, len(pending))
	for i := range pending {
		ids = append(ids, pending[i].ID)
	}
	if err := s.ds.MarkDigestDelivered(ids, now); err != nil {
		return err
	}
	if err := s.ds.SetLastDigestAt(pref.UserID, now); err != nil {
		return err
	}

	s.logger.Info("digest sent", "user_id", pref.UserID, "items", len(pending))
	if s.metrics != nil {
		s.metrics.DigestsFlushed.Inc()
	}
	return nil
}

// composeDigest renders the batched items into one summary body.
func composeDigest(pending []datastore.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d alerts since your last digest:\n\n", len(pending))
	for i := range pending {
		n := &pending[i]
		fmt.Fprintf(&b, "[%s] %s: %s (%s)\n",
			strings.ToUpper(string(n.Severity)), n.Title, n.Message,
			n.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// maxSeverity returns the highest severity among the batched items.
func maxSeverity(pending []datastore.Notification) datastore.Severity {
	top := datastore.SeverityLow
	for i := range pending {
		if pending[i].Severity.Rank() > top.Rank() {
			top = pending[i].Severity
		}
	}
	return top
}
