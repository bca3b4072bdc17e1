package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"github.com/iliyamo/guesthouse-admin/internal/queue"
)

// messagingClient is the part of *messaging.Client used here.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushClient sends notifications to a device token through Firebase Cloud
// Messaging.
type PushClient struct {
	client messagingClient
}

// NewPushClient initializes a Firebase app from a service-account file.
func NewPushClient(ctx context.Context, projectID, credentialsPath string) (*PushClient, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing messaging client: %w", err)
	}
	return &PushClient{client: client}, nil
}

func (c *PushClient) Send(ctx context.Context, ev queue.NotificationEvent) error {
	msg := &messaging.Message{
		Token: ev.Recipient,
		Notification: &messaging.Notification{
			Title: ev.Subject,
			Body:  ev.Body,
		},
		Data: ev.Data,
	}
	if _, err := c.client.Send(ctx, msg); err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
			return fmt.Errorf("fcm rejected message: %v: %w", err, queue.ErrPermanent)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
