package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPasswordResetRequested     EventType = "password_reset_requested"
	EventEmailVerificationRequested EventType = "email_verification_requested"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TokenDeliveryPayload carries a single-use token that must reach the user
// out of band.
type TokenDeliveryPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
