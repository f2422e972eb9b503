// Package notify sends out-of-band notifications triggered by auth-substrate
// events. Driver invite creation (D3) is the only caller today.
package notify

import (
	"context"
	"log/slog"
)

// EmailSender is deliberately narrow -- one method per notification this
// system actually sends, not a general-purpose mail client.
type EmailSender interface {
	SendInvite(ctx context.Context, to string, code string) error
}

// DevMailer logs the notification instead of sending it. Safe default for
// local development and for any environment without outbound mail
// configured.
type DevMailer struct {
	Logger *slog.Logger
}

func NewDevMailer(logger *slog.Logger) *DevMailer {
	return &DevMailer{Logger: logger}
}

func (m *DevMailer) SendInvite(ctx context.Context, to string, code string) error {
	m.Logger.Info("invite email", "to", to, "code", code)
	return nil
}

// NoopMailer discards every notification. Used when an invite carries no
// contact email, or as a test double.
type NoopMailer struct{}

func (NoopMailer) SendInvite(ctx context.Context, to string, code string) error { return nil }

var _ EmailSender = (*DevMailer)(nil)
var _ EmailSender = NoopMailer{}
