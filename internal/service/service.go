// Package service implements the guest-house workflows. Every write runs
// as one transaction through database.Gateway: rows that an invariant
// depends on are locked with SELECT ... FOR UPDATE, the invariant is
// checked, and the change and its activity-log entry commit together.
// Invariant violations are returned as *apperr.Error; anything else is a
// wrapped database error that aborted the transaction.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/database"
	"github.com/iliyamo/guesthouse-admin/internal/metrics"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// Deps are shared by every service.
type Deps struct {
	Gateway   *database.Gateway
	Seq       *repository.SequenceRepo
	Activity  *repository.ActivityRepo
	Publisher queue.Publisher
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	// Clock defaults to time.Now. Loc is the guest-house zone in which visit
	// dates and times are written; it defaults to UTC.
	Clock func() time.Time
	Loc   *time.Location
}

// NewDeps fills the defaults of d.
func NewDeps(d Deps) Deps {
	if d.Seq == nil {
		d.Seq = repository.NewSequenceRepo()
	}
	if d.Activity == nil {
		d.Activity = repository.NewActivityRepo(d.Seq)
	}
	if d.Publisher == nil {
		d.Publisher = queue.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Loc == nil {
		d.Loc = time.UTC
	}
	return d
}

// now is the current wall time in the guest-house zone.
func (d Deps) now() time.Time { return d.Clock().In(d.Loc) }

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

func dateOf(t time.Time) string  { return t.Format(dateLayout) }
func clockOf(t time.Time) string { return t.Format(timeLayout) }

// parseDate validates a YYYY-MM-DD value.
func parseDate(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", apperr.Validationf("%s must be a date in YYYY-MM-DD format", field)
	}
	return t.Format(dateLayout), nil
}

// parseClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func parseClock(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{timeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(timeLayout), nil
		}
	}
	return "", apperr.Validationf("%s must be a time in HH:MM or HH:MM:SS format", field)
}

// optDate validates an optional date in place.
func optDate(field string, s *string) error {
	if s == nil {
		return nil
	}
	v, err := parseDate(field, *s)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func optClock(field string, s *string) error {
	if s == nil {
		return nil
	}
	v, err := parseClock(field, *s)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// combine joins a date and an optional time in loc; a missing time is
// midnight.
func combine(date string, clock *string, loc *time.Location) (time.Time, error) {
	c := "00:00:00"
	if clock != nil {
		c = *clock
	}
	return time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+c, loc)
}

// notFound turns sql.ErrNoRows into a NOT_FOUND error and wraps anything
// else.
func notFound(err error, what, id string) error {
	if repository.IsNoRows(err) {
		return apperr.NotFoundf("%s %s not found", what, id)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

// pick returns src when set, otherwise dst.
func pick[T any](dst, src *T) *T {
	if src != nil {
		return src
	}
	return dst
}

// trimmed returns nil for a nil or blank string.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func required(field, s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", apperr.Validationf("%s is required", field)
	}
	return v, nil
}

// publish queues ev after a committed change. Failures are logged and
// never returned.
func (d Deps) publish(ctx context.Context, ev queue.NotificationEvent) {
	if ev.Recipient == "" {
		return
	}
	if err := d.Publisher.Publish(ctx, ev); err != nil {
		d.Metrics.ObserveNotification(ev.Channel, "publish_failed")
		d.Log.Warn("notification publish failed",
			zap.String("type", ev.Type), zap.String("channel", ev.Channel), zap.Error(err))
		return
	}
	d.Metrics.ObserveNotification(ev.Channel, "published")
}

// notifyGuest sends the same message to every contact the guest has.
func (d Deps) notifyGuest(ctx context.Context, typ string, email, mobile *string, subject, body string, data map[string]string) {
	if email != nil && *email != "" {
		d.publish(ctx, queue.NotificationEvent{Type: typ, Channel: queue.ChannelEmail, Recipient: *email,
			Subject: subject, Body: body, Data: data})
	}
	if mobile != nil && *mobile != "" {
		d.publish(ctx, queue.NotificationEvent{Type: typ, Channel: queue.ChannelWhatsApp, Recipient: *mobile,
			Body: body, Data: data})
	}
}
