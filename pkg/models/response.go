package models

import "time"

type ResponseStatus string

const (
	ResponseAnswered ResponseStatus = "answered"
	ResponseFailed   ResponseStatus = "failed"
)

// Response is what the response sink hands back to the originating channel.
type Response struct {
	MessageID    string         `json:"message_id"`
	UserID       string         `json:"user_id"`
	Channel      Channel        `json:"channel"`
	Text         string         `json:"text"`
	Intent       Intent         `json:"intent"`
	Confidence   float64        `json:"confidence"`
	Target       DispatchTarget `json:"target,omitempty"`
	ActionTaken  string         `json:"action_taken,omitempty"`
	RequiresAuth bool           `json:"requires_auth,omitempty"`
	Status       ResponseStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}
