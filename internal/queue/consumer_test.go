package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeDeliverer struct {
	errs  []error
	calls int
}

func (f *fakeDeliverer) Deliver(context.Context, NotificationEvent) error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return nil
}

func body(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(NotificationEvent{ID: "e1", Type: EventRoomAssigned, Channel: ChannelEmail, Recipient: "a@b.c", Body: "hi"})
	require.NoError(t, err)
	return b
}

func TestHandle_RetriesThenDelivers(t *testing.T) {
	d := &fakeDeliverer{errs: []error{errors.New("503"), errors.New("timeout")}}
	results := []string{}
	c := &Consumer{MaxAttempts: 3, Deliverer: d, Log: zap.NewNop(),
		Observe: func(ch, r string) { results = append(results, ch+":"+r) }}

	assert.True(t, c.Handle(context.Background(), body(t)))
	assert.Equal(t, 3, d.calls)
	assert.Equal(t, []string{"email:delivered"}, results)
}

func TestHandle_GivesUpAfterMaxAttempts(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := &fakeDeliverer{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
	c := &Consumer{MaxAttempts: 3, Deliverer: d, Log: zap.New(core)}

	assert.True(t, c.Handle(context.Background(), body(t)))
	assert.Equal(t, 3, d.calls)
	assert.Equal(t, 1, logs.FilterMessage("notification delivery failed permanently").Len())
}

func TestHandle_PermanentErrorStopsRetrying(t *testing.T) {
	d := &fakeDeliverer{errs: []error{fmt.Errorf("bad recipient: %w", ErrPermanent)}}
	c := &Consumer{MaxAttempts: 5, Deliverer: d, Log: zap.NewNop()}

	assert.True(t, c.Handle(context.Background(), body(t)))
	assert.Equal(t, 1, d.calls)
}

func TestHandle_Malformed(t *testing.T) {
	d := &fakeDeliverer{}
	c := &Consumer{MaxAttempts: 3, Deliverer: d, Log: zap.NewNop()}
	assert.True(t, c.Handle(context.Background(), []byte("{not json")))
	assert.Equal(t, 0, d.calls)
}

func TestHandle_CancelledDuringRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDeliverer{errs: []error{errors.New("a")}}
	c := &Consumer{MaxAttempts: 3, RetryDelay: 1, Deliverer: d, Log: zap.NewNop()}
	assert.False(t, c.Handle(ctx, body(t)))
}
