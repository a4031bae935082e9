package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Message is a single email handed to the mail API.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPSender posts messages as JSON to a transactional mail API.
type HTTPSender struct {
	URL    string
	From   string
	Client *http.Client
}

func NewHTTPSender(url, from string) *HTTPSender {
	return &HTTPSender{
		URL:  url,
		From: from,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient is empty")
	}
	if msg.From == "" {
		msg.From = s.From
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

// LogSender only logs messages; used when no mail API is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "Mail not sent, no mail API configured",
		slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
