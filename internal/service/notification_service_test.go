package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/service"
)

func TestNotificationServiceRendersLinks(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	sender := &recordingSender{}
	service.NewNotificationService(dispatcher, sender, zap.NewNop(), notificationCfg).RegisterHandlers()

	payload := events.TokenDeliveryPayload{Email: "ada@example.com", Name: "Ada", Token: "a.b-c_d", ExpiresAt: time.Now()}

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventEmailVerificationRequested,
		Payload: payload,
	}))
	msg := sender.last(t)
	assert.Equal(t, "Email Verification", msg.Subject)
	assert.Contains(t, msg.Body, "https://app.example.com/verify-email?token=a.b-c_d")
	assert.Contains(t, msg.Body, "Dear Ada")

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventPasswordResetRequested,
		Payload: &payload,
	}))
	msg = sender.last(t)
	assert.Equal(t, "Reset password", msg.Subject)
	assert.Contains(t, msg.Body, "https://app.example.com/reset-password?token=a.b-c_d")
}

func TestNotificationServiceErrors(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	sender := &recordingSender{err: errors.New("smtp down")}
	service.NewNotificationService(dispatcher, sender, zap.NewNop(), notificationCfg).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventPasswordResetRequested,
		Payload: events.TokenDeliveryPayload{Email: "ada@example.com", Token: "t"},
	})
	assert.EqualError(t, err, "smtp down")

	err = dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventPasswordResetRequested,
		Payload: "not a payload",
	})
	assert.ErrorContains(t, err, "unexpected payload string")
}

func TestLogSenderOmitsToken(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, nil, zap.New(core), notificationCfg).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventPasswordResetRequested,
		Payload: events.TokenDeliveryPayload{Email: "ada@example.com", Token: "secret-token-value"},
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "email queued", entries[0].Message)
	for _, field := range entries[0].Context {
		assert.NotContains(t, field.String, "secret-token-value")
	}
}
