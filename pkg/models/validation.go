package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{
			Field:   "envelope",
			Message: "message envelope cannot be nil",
		}
	}

	if msg.MessageID == "" {
		return &ValidationError{
			Field:   "message_id",
			Message: "message ID is required",
		}
	}

	if msg.UserID == "" {
		return &ValidationError{
			Field:   "user_id",
			Message: "user ID is required",
		}
	}

	if !msg.Channel.Valid() {
		return &ValidationError{
			Field:   "channel",
			Message: fmt.Sprintf("unsupported channel %q (supported: web, app, whatsapp, rcs)", msg.Channel),
		}
	}

	if msg.Text == "" {
		return &ValidationError{
			Field:   "text",
			Message: "message text cannot be empty",
		}
	}

	if msg.ReceivedAt.IsZero() {
		return &ValidationError{
			Field:   "received_at",
			Message: "receive timestamp is required",
		}
	}

	return nil
}
