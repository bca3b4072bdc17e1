// Package notify delivers notification events through external providers:
// an HTTP email API, the WhatsApp Business Cloud API and Firebase Cloud
// Messaging.
package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/iliyamo/guesthouse-admin/internal/queue"
)

// Sender delivers an event through one channel.
type Sender interface {
	Send(ctx context.Context, ev queue.NotificationEvent) error
}

// Router picks the Sender for an event's channel. A nil Sender means the
// channel is not configured; such events fail permanently.
type Router struct {
	Email    Sender
	WhatsApp Sender
	Push     Sender
}

// Deliver implements queue.Deliverer.
func (r *Router) Deliver(ctx context.Context, ev queue.NotificationEvent) error {
	var s Sender
	switch ev.Channel {
	case queue.ChannelEmail:
		s = r.Email
	case queue.ChannelWhatsApp:
		s = r.WhatsApp
	case queue.ChannelPush:
		s = r.Push
	default:
		return fmt.Errorf("unknown channel %q: %w", ev.Channel, queue.ErrPermanent)
	}
	if s == nil {
		return fmt.Errorf("channel %q not configured: %w", ev.Channel, queue.ErrPermanent)
	}
	if ev.Recipient == "" {
		return fmt.Errorf("event %s has no recipient: %w", ev.ID, queue.ErrPermanent)
	}
	return s.Send(ctx, ev)
}

// classify turns a provider response into an error. Client errors other
// than 408 and 429 are permanent; server errors are retried.
func classify(provider string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%s returned %d", provider, code)
	default:
		return fmt.Errorf("%s rejected request with %d: %s: %w", provider, code, truncate(resp.String(), 200), queue.ErrPermanent)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
