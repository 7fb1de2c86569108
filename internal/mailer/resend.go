package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ResendClient sends emails through the Resend HTTP API.
type ResendClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewResendClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *ResendClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResendClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type resendEmail struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	ReplyTo     []string           `json:"reply_to,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Name       string `json:"name"`
}

// Send posts msg to /emails.
func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	req := resendEmail{
		From:    msg.From.String(),
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		req.ReplyTo = []string{msg.ReplyTo}
	}
	for _, att := range msg.Attachments {
		req.Attachments = append(req.Attachments, resendAttachment{
			Filename:    att.Filename,
			Content:     base64.StdEncoding.EncodeToString(att.Data),
			ContentType: att.ContentType,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("resend: encode request: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/emails", bytes.NewReader(body), &out); err != nil {
		return err
	}

	c.logger.Debug("resend: email accepted", "id", out.ID)
	return nil
}

// Ping checks that the API is reachable and accepts the key.
func (c *ResendClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/domains", nil, nil)
}

func (c *ResendClient) do(ctx context.Context, method, path string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("resend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr resendError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("resend: %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("resend: %s %s: status %d", method, path, resp.StatusCode)
	}

	if dst != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("resend: decode response: %w", err)
		}
	}
	return nil
}
