package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// webhookTimeout bounds a single delivery attempt so the monitor cycle
// cannot block on a dead endpoint.
const webhookTimeout = 5 * time.Second

// textMessage is the chat-bot payload shared by the chat and cloud
// channels.
type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

func newTextMessage(subject, body string) textMessage {
	var m textMessage
	m.MsgType = "text"
	m.Text.Content = subject + "\n" + body
	return m
}

// webhookNotifier POSTs alerts to a generic webhook endpoint.
type webhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func newWebhookNotifier(webhookURL string, logger *slog.Logger) *webhookNotifier {
	return &webhookNotifier{
		url:    webhookURL,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

func (n *webhookNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.url == "" {
		return fmt.Errorf("webhook alert channel has no URL configured")
	}
	return postJSON(ctx, n.client, n.url, newTextMessage(subject, body), n.logger, subject)
}

// chatNotifier delivers alerts to a chat-bot webhook with optional
// HMAC request signing: the signature covers "<timestamp>\n<secret>"
// and is appended to the URL as timestamp and sign query parameters.
type chatNotifier struct {
	webhook string
	secret  string
	client  *http.Client
	logger  *slog.Logger

	// now is replaced in tests to pin the signature timestamp.
	now func() time.Time
}

func newChatNotifier(webhook, secret string, logger *slog.Logger) *chatNotifier {
	return &chatNotifier{
		webhook: webhook,
		secret:  secret,
		client:  &http.Client{Timeout: webhookTimeout},
		logger:  logger,
		now:     time.Now,
	}
}

// signWebhook computes the signed webhook URL for a millisecond
// timestamp.
func signWebhook(webhook, secret string, ts int64) string {
	if secret == "" {
		return webhook
	}
	stringToSign := fmt.Sprintf("%d\n%s", ts, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	sign := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	sep := "?"
	if strings.Contains(webhook, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s", webhook, sep, ts, sign)
}

func (n *chatNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.webhook == "" {
		return fmt.Errorf("chat alert channel has no webhook configured")
	}
	target := signWebhook(n.webhook, n.secret, n.now().UnixMilli())
	return postJSON(ctx, n.client, target, newTextMessage(subject, body), n.logger, subject)
}

func postJSON(ctx context.Context, client *http.Client, target string, payload any, logger *slog.Logger, subject string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("alert webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	logger.Info("alert webhook delivered", "subject", subject)
	return nil
}
