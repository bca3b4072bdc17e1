package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/config"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
)

// NewRouterFromConfig builds a Router with every channel that has its
// provider settings. A push client that fails to initialize leaves the
// push channel off; its events then fail permanently.
func NewRouterFromConfig(ctx context.Context, cfg config.NotifyConfig, log *zap.Logger) *Router {
	r := &Router{}
	if cfg.EmailAPIURL != "" {
		r.Email = NewEmailClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
	}
	if cfg.WhatsAppPhoneID != "" && cfg.WhatsAppToken != "" {
		r.WhatsApp = NewWhatsAppClient(cfg.WhatsAppAPIURL, cfg.WhatsAppPhoneID, cfg.WhatsAppToken)
	}
	if cfg.FCMProjectID != "" && cfg.FCMCredentialsPath != "" {
		push, err := NewPushClient(ctx, cfg.FCMProjectID, cfg.FCMCredentialsPath)
		if err != nil {
			log.Error("push channel disabled", zap.Error(err))
		} else {
			r.Push = push
		}
	}
	log.Info("notification channels",
		zap.Bool("email", r.Email != nil), zap.Bool("whatsapp", r.WhatsApp != nil), zap.Bool("push", r.Push != nil))
	return r
}

// NewConsumer returns the queue consumer that delivers through r.
func NewConsumer(cfg config.NotifyConfig, r *Router, log *zap.Logger, observe queue.ResultObserver) *queue.Consumer {
	return &queue.Consumer{
		URL:         cfg.AMQPURL,
		Queue:       cfg.Queue,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
		Deliverer:   r,
		Log:         log,
		Observe:     observe,
	}
}
