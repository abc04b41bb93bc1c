package models

import "time"

type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelApp      Channel = "app"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelRCS      Channel = "rcs"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWeb, ChannelApp, ChannelWhatsApp, ChannelRCS:
		return true
	default:
		return false
	}
}

// MessageEnvelope is one inbound user message in flight. MessageID and
// ReceivedAt are set once at ingress; AttemptCount is advanced by the consumer.
type MessageEnvelope struct {
	MessageID    string    `json:"message_id"`
	UserID       string    `json:"user_id"`
	Channel      Channel   `json:"channel"`
	Text         string    `json:"text"`
	AuthToken    string    `json:"auth_token,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
	AttemptCount int       `json:"attempt_count"`
	Metadata     Metadata  `json:"metadata"`
}

type Metadata struct {
	TraceID    string          `json:"trace_id,omitempty"`
	DeadLetter *DeadLetterInfo `json:"dead_letter,omitempty"`
}

type DeadLetterInfo struct {
	Reason         string    `json:"reason"`
	SourceQueue    string    `json:"source_queue"`
	Attempts       int       `json:"attempts"`
	DeadLetteredAt time.Time `json:"dead_lettered_at"`
}
