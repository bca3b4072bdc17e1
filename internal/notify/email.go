package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iliyamo/guesthouse-admin/internal/queue"
)

// EmailClient posts messages to a transactional email HTTP API that takes
// {from, to, subject, text} and a bearer API key.
type EmailClient struct {
	http *resty.Client
	url  string
	from string
}

func NewEmailClient(apiURL, apiKey, from string) *EmailClient {
	c := resty.New().
		SetTimeout(15*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &EmailClient{http: c, url: apiURL, from: from}
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (c *EmailClient) Send(ctx context.Context, ev queue.NotificationEvent) error {
	subject := ev.Subject
	if subject == "" {
		subject = "Guest house notification"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(emailRequest{From: c.from, To: ev.Recipient, Subject: subject, Text: ev.Body}).
		Post(c.url)
	return classify("email api", resp, err)
}
