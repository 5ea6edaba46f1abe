package services

import (
	"context"
	"log/slog"
)

// Mailer delivers account emails. Delivery is an external system; the
// service only hands over the address and the single-use token.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes the emails to the log instead of sending them. It is
// the delivery channel for local development.
type LogMailer struct{}

func (LogMailer) SendVerification(_ context.Context, email, token string) error {
	slog.Info("verification email (log delivery)", "email", email, "token", token)
	return nil
}

func (LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	slog.Info("password reset email (log delivery)", "email", email, "token", token)
	return nil
}
