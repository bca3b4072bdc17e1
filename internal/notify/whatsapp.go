package notify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iliyamo/guesthouse-admin/internal/queue"
)

// WhatsAppClient sends text messages through the WhatsApp Business Cloud
// API (POST /{phone-number-id}/messages).
type WhatsAppClient struct {
	http    *resty.Client
	phoneID string
}

func NewWhatsAppClient(baseURL, phoneID, token string) *WhatsAppClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return &WhatsAppClient{http: c, phoneID: phoneID}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (c *WhatsAppClient) Send(ctx context.Context, ev queue.NotificationEvent) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("phoneID", c.phoneID).
		SetBody(whatsAppRequest{
			MessagingProduct: "whatsapp",
			To:               strings.TrimPrefix(ev.Recipient, "+"),
			Type:             "text",
			Text:             whatsAppText{Body: ev.Body},
		}).
		Post("/{phoneID}/messages")
	return classify("whatsapp api", resp, err)
}
