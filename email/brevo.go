package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoDispatcher delivers mail through the Brevo transactional email API.
type BrevoDispatcher struct {
	apiKey      string
	senderName  string
	senderEmail string
	endpoint    string
	client      *http.Client
	logger      *slog.Logger
}

func NewBrevoDispatcher(apiKey, senderName, senderEmail string, logger *slog.Logger) *BrevoDispatcher {
	return &BrevoDispatcher{
		apiKey:      apiKey,
		senderName:  senderName,
		senderEmail: senderEmail,
		endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type brevoRequest struct {
	Sender      brevoParty        `json:"sender"`
	To          []brevoParty      `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

func (d *BrevoDispatcher) Send(ctx context.Context, msg Message) bool {
	if d.apiKey == "" {
		d.logger.Error("email: brevo api key not configured", "to", msg.To)
		return false
	}

	payload := brevoRequest{
		Sender:      brevoParty{Name: d.senderName, Email: d.senderEmail},
		To:          []brevoParty{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	for _, att := range msg.Attachments {
		payload.Attachment = append(payload.Attachment, brevoAttachment{
			Name:    att.Filename,
			Content: base64.StdEncoding.EncodeToString(att.Content),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("email: marshal brevo request", "to", msg.To, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("email: build brevo request", "to", msg.To, "error", err)
		return false
	}
	req.Header.Set("api-key", d.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("email: brevo request failed", "to", msg.To, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		d.logger.Error("email: brevo rejected message",
			"to", msg.To,
			"status", resp.StatusCode,
			"detail", string(detail))
		return false
	}

	d.logger.Info("email: sent", "to", msg.To, "subject", msg.Subject)
	return true
}

// LogDispatcher records outbound mail instead of delivering it. It stands in
// for a real provider in development and tests.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, msg Message) bool {
	d.logger.Info("email: suppressed (log dispatcher)",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", fmt.Sprint(len(msg.Attachments)))
	return true
}
