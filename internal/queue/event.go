// Package queue carries notification events over RabbitMQ: a durable
// queue, persistent messages, and a consumer that retries delivery a
// bounded number of times before giving up.
package queue

import "time"

// Event types.
const (
	EventVisitScheduled   = "guest.visit_scheduled"
	EventRoomAssigned     = "guest.room_assigned"
	EventResourceAssigned = "guest.resource_assigned"
	EventPasswordReset    = "auth.password_reset"
)

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelPush     = "push"
)

// NotificationEvent is one message to deliver through one channel.
// Recipient is an email address, an E.164 phone number or a device token
// depending on Channel.
type NotificationEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Channel   string            `json:"channel"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
