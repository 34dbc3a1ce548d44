// Package slack delivers run failure notifications to a Slack webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/matchday/sportsync/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers run failure notifications to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	client     *http.Client
}

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "sportsync"
	}

	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// SendRunFailure posts a formatted message to Slack.
func (c *Client) SendRunFailure(ctx context.Context, payload notify.RunFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			// Linear backoff to avoid thundering retries.
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (c *Client) formatMessage(payload notify.RunFailurePayload) map[string]any {
	occurred := payload.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Job run failure*")
	if payload.JobKey != "" {
		text.WriteString(" `")
		text.WriteString(payload.JobKey)
		text.WriteByte('`')
	}
	if payload.Trigger != "" {
		text.WriteString(" (")
		text.WriteString(payload.Trigger)
		text.WriteByte(')')
	}
	text.WriteByte('\n')

	fields := []struct {
		label string
		value string
	}{
		{"Severity", fallbackString(payload.Severity, notify.SeverityCritical)},
		{"Run", payload.RunID},
		{"Error class", payload.ErrorClass},
		{"Error", payload.Error},
	}
	for _, field := range fields {
		appendField(&text, field.label, field.value)
	}
	appendMetadata(&text, payload.Metadata)
	fmt.Fprintf(&text, "_%s_", occurred.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

func appendField(text *strings.Builder, label, value string) {
	v := escapeSlackText(strings.TrimSpace(value))
	if v == "" {
		return
	}
	text.WriteString("• *")
	text.WriteString(label)
	text.WriteString(":* ")
	text.WriteString(v)
	text.WriteByte('\n')
}

func appendMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendField(text, k, metadata[k])
	}
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
