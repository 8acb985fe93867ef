// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers password reset links over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-auth-api/internal/config"
	"codeberg.org/oliverandrich/go-auth-api/internal/i18n"
	"github.com/wneessen/go-mail"
)

// sendTimeout bounds a single SMTP dial and delivery.
const sendTimeout = 15 * time.Second

var resetTemplate = template.Must(template.New("password_reset").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<body>
<p>{{.Greeting}}</p>
<p>{{.Intro}}</p>
<p>{{.Action}}</p>
<p><a href="{{.ResetURL}}">{{.Button}}</a></p>
<p>{{.Expiry}}</p>
<p>{{.Ignore}}</p>
</body>
</html>
`))

// resetContent is the localized text of a reset email.
type resetContent struct {
	Lang     string
	Subject  string
	Greeting string
	Intro    string
	Action   string
	Button   string
	Expiry   string
	Ignore   string
	ResetURL string
}

// Service sends password reset emails.
type Service struct {
	cfg      *config.SMTPConfig
	resetTTL time.Duration
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, resetTTL time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required")
	}

	return &Service{
		cfg:      cfg,
		resetTTL: resetTTL,
	}, nil
}

// SendPasswordReset sends the reset link to the given address in the
// locale carried by ctx.
func (s *Service) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	msg, err := s.buildResetMessage(ctx, to, resetURL)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Service) localizedContent(ctx context.Context, resetURL string) resetContent {
	return resetContent{
		Lang:     i18n.GetLocale(ctx),
		Subject:  i18n.T(ctx, "password_reset_subject"),
		Greeting: i18n.T(ctx, "password_reset_greeting"),
		Intro:    i18n.T(ctx, "password_reset_intro"),
		Action:   i18n.T(ctx, "password_reset_action"),
		Button:   i18n.T(ctx, "password_reset_button"),
		Expiry: i18n.TData(ctx, "password_reset_expiry", map[string]any{
			"Expiry": formatDuration(s.resetTTL),
		}),
		Ignore:   i18n.T(ctx, "password_reset_ignore"),
		ResetURL: resetURL,
	}
}

func (s *Service) buildResetMessage(ctx context.Context, to, resetURL string) (*mail.Msg, error) {
	content := s.localizedContent(ctx, resetURL)

	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(content.Subject)

	if err := msg.SetBodyHTMLTemplate(resetTemplate, content); err != nil {
		return nil, fmt.Errorf("rendering reset email: %w", err)
	}
	msg.AddAlternativeString(mail.TypeTextPlain, plainBody(content))

	return msg, nil
}

func plainBody(c resetContent) string {
	var b strings.Builder
	for _, line := range []string{c.Greeting, "", c.Intro, "", c.Action, c.ResetURL, "", c.Expiry, "", c.Ignore} {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// formatDuration renders whole hours and minutes without trailing zero units.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return d.String()
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	case d%time.Minute == 0 && d > time.Hour:
		return fmt.Sprintf("%dh%dm", int(d/time.Hour), int((d%time.Hour)/time.Minute))
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	default:
		return d.String()
	}
}

// send delivers a message via SMTP using go-mail.
func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(sendTimeout),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
