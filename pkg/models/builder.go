package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageEnvelopeBuilder struct {
	envelope *MessageEnvelope
}

func NewMessageEnvelopeBuilder() *MessageEnvelopeBuilder {
	return &MessageEnvelopeBuilder{
		envelope: &MessageEnvelope{},
	}
}

func (b *MessageEnvelopeBuilder) WithMessageID(id string) *MessageEnvelopeBuilder {
	b.envelope.MessageID = id
	return b
}

func (b *MessageEnvelopeBuilder) WithUser(userID string) *MessageEnvelopeBuilder {
	b.envelope.UserID = userID
	return b
}

func (b *MessageEnvelopeBuilder) WithChannel(channel Channel) *MessageEnvelopeBuilder {
	b.envelope.Channel = channel
	return b
}

func (b *MessageEnvelopeBuilder) WithText(text string) *MessageEnvelopeBuilder {
	b.envelope.Text = text
	return b
}

func (b *MessageEnvelopeBuilder) WithAuthToken(token string) *MessageEnvelopeBuilder {
	b.envelope.AuthToken = token
	return b
}

func (b *MessageEnvelopeBuilder) WithReceivedAt(t time.Time) *MessageEnvelopeBuilder {
	b.envelope.ReceivedAt = t
	return b
}

func (b *MessageEnvelopeBuilder) WithTraceID(traceID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

// Build fills in a message id and receive time when they were not provided.
func (b *MessageEnvelopeBuilder) Build() *MessageEnvelope {
	if b.envelope.MessageID == "" {
		b.envelope.MessageID = uuid.New().String()
	}
	if b.envelope.ReceivedAt.IsZero() {
		b.envelope.ReceivedAt = time.Now().UTC()
	}
	return b.envelope
}
