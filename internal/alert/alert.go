// Package alert delivers threshold-breach notifications from the
// monitor through one of several interchangeable channels. The channel
// is selected once at startup from configuration; callers only see the
// Notifier interface. Delivery is best-effort — a channel failure is
// reported to the caller, logged there, and never retried here.
package alert

import (
	"context"
	"log/slog"
)

// Provider names for the configurable alert channels.
const (
	ProviderLocal = "local"
	ProviderEmail = "email"
	ProviderChat  = "chat"
	ProviderCloud = "cloud"
)

// Notifier is the single capability all alert channels share.
type Notifier interface {
	// Notify delivers one alert message. Implementations bound their
	// own network calls so a slow channel cannot stall the monitor
	// cycle indefinitely.
	Notify(ctx context.Context, subject, body string) error
}

// Config selects and parameterizes the alert channel.
type Config struct {
	// Provider is one of local, email, chat, cloud.
	Provider string

	// SMTP settings, used by the email provider and by local as an
	// optional upgrade from log-only alerts.
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	Recipients   []string

	// ChatWebhook is the signed chat-bot webhook URL; ChatSecret, when
	// set, enables HMAC request signing.
	ChatWebhook string
	ChatSecret  string

	// CloudWebhook is a generic webhook endpoint.
	CloudWebhook string
}

// New builds the Notifier selected by cfg.Provider. Unknown providers
// fall back to the local channel so a misconfigured deployment still
// surfaces alerts somewhere.
func New(cfg Config, logger *slog.Logger) Notifier {
	switch cfg.Provider {
	case ProviderEmail:
		return newEmailNotifier(cfg, logger)
	case ProviderChat:
		return newChatNotifier(cfg.ChatWebhook, cfg.ChatSecret, logger)
	case ProviderCloud:
		return newWebhookNotifier(cfg.CloudWebhook, logger)
	case ProviderLocal:
		return newLocalNotifier(cfg, logger)
	default:
		logger.Warn("unknown alert provider, falling back to local",
			"provider", cfg.Provider)
		return newLocalNotifier(cfg, logger)
	}
}
