package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/guesthouse-admin/internal/queue"
)

func TestRouter_UnconfiguredChannelIsPermanent(t *testing.T) {
	r := &Router{}
	err := r.Deliver(context.Background(), queue.NotificationEvent{Channel: queue.ChannelEmail, Recipient: "x@y.z"})
	assert.ErrorIs(t, err, queue.ErrPermanent)

	err = r.Deliver(context.Background(), queue.NotificationEvent{Channel: "sms", Recipient: "1"})
	assert.ErrorIs(t, err, queue.ErrPermanent)
}

func TestEmailClient_Send(t *testing.T) {
	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewEmailClient(srv.URL, "key-1", "desk@guesthouse.local")
	err := c.Send(context.Background(), queue.NotificationEvent{Recipient: "guest@example.com", Subject: "Room", Body: "R005"})
	require.NoError(t, err)
	assert.Equal(t, emailRequest{From: "desk@guesthouse.local", To: "guest@example.com", Subject: "Room", Text: "R005"}, got)
}

func TestEmailClient_StatusClassification(t *testing.T) {
	code := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	defer srv.Close()
	c := NewEmailClient(srv.URL, "k", "f@x")
	ev := queue.NotificationEvent{Recipient: "a@b.c", Body: "x"}

	assert.ErrorIs(t, c.Send(context.Background(), ev), queue.ErrPermanent)

	code = http.StatusServiceUnavailable
	err := c.Send(context.Background(), ev)
	require.Error(t, err)
	assert.False(t, errors.Is(err, queue.ErrPermanent))
}

func TestWhatsAppClient_Send(t *testing.T) {
	var (
		path string
		got  whatsAppRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL+"/", "12345", "tok")
	require.NoError(t, c.Send(context.Background(), queue.NotificationEvent{Recipient: "+15550001", Body: "hello"}))
	assert.Equal(t, "/12345/messages", path)
	assert.Equal(t, "15550001", got.To)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "hello", got.Text.Body)
}

type fakeMessaging struct {
	msg *messaging.Message
	err error
}

func (f *fakeMessaging) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.msg = m
	return "projects/p/messages/1", f.err
}

func TestPushClient_Send(t *testing.T) {
	f := &fakeMessaging{}
	c := &PushClient{client: f}
	err := c.Send(context.Background(), queue.NotificationEvent{
		Recipient: "device-token", Subject: "Driver assigned", Body: "D001", Data: map[string]string{"guest_id": "G001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "device-token", f.msg.Token)
	assert.Equal(t, "Driver assigned", f.msg.Notification.Title)
	assert.Equal(t, "G001", f.msg.Data["guest_id"])

	f.err = errors.New("unavailable")
	err = c.Send(context.Background(), queue.NotificationEvent{Recipient: "device-token"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, queue.ErrPermanent))
}
