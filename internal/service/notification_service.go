package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/events"
)

// EmailMessage is a rendered outbound email.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	Body    string
}

// EmailSender delivers rendered emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// logSender stands in for a mail provider. Bodies carry single-use tokens and
// are never written to the log.
type logSender struct {
	logger *zap.Logger
}

func (l logSender) Send(_ context.Context, msg EmailMessage) error {
	l.logger.Info("email queued",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// NotificationService turns token delivery events into emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     EmailSender
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. A nil sender logs messages instead
// of delivering them.
func NewNotificationService(dispatcher events.Dispatcher, sender EmailSender, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = logSender{logger: logger}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventEmailVerificationRequested, n.handleEmailVerificationRequested)
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, err := deliveryPayload(event)
	if err != nil {
		return err
	}
	link, err := tokenLink(n.cfg.ResetPasswordURL, payload.Token)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, EmailMessage{
		From:    n.cfg.EmailFrom,
		To:      payload.Email,
		Subject: "Reset password",
		Body: fmt.Sprintf("Dear %s,\nTo reset your password, click on this link: %s\n"+
			"If you did not request any password resets, then ignore this email.",
			greetingName(payload), link),
	})
}

func (n *NotificationService) handleEmailVerificationRequested(ctx context.Context, event events.Event) error {
	payload, err := deliveryPayload(event)
	if err != nil {
		return err
	}
	link, err := tokenLink(n.cfg.VerifyEmailURL, payload.Token)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, EmailMessage{
		From:    n.cfg.EmailFrom,
		To:      payload.Email,
		Subject: "Email Verification",
		Body: fmt.Sprintf("Dear %s,\nTo verify your email, click on this link: %s\n"+
			"If you did not create an account, then ignore this email.",
			greetingName(payload), link),
	})
}

func deliveryPayload(event events.Event) (events.TokenDeliveryPayload, error) {
	switch p := event.Payload.(type) {
	case events.TokenDeliveryPayload:
		return p, nil
	case *events.TokenDeliveryPayload:
		if p != nil {
			return *p, nil
		}
	}
	return events.TokenDeliveryPayload{}, fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
}

func tokenLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func greetingName(p events.TokenDeliveryPayload) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "user"
}
