package ingress

import (
	"cardassist/pkg/models"
)

const (
	StatusAnswered    = "answered"
	StatusQueued      = "queued"
	StatusFailed      = "failed"
	StatusUnavailable = "unavailable"
)

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
	UserID  string `json:"user_id"`
	Channel string `json:"channel"`
	Token   string `json:"token,omitempty"`
}

type ChatResponse struct {
	MessageID    string                      `json:"message_id"`
	Status       string                      `json:"status"`
	Reply        string                      `json:"reply"`
	Intent       models.Intent               `json:"intent,omitempty"`
	Confidence   float64                     `json:"confidence,omitempty"`
	Source       models.ClassificationSource `json:"source,omitempty"`
	Target       models.DispatchTarget       `json:"target,omitempty"`
	ActionTaken  string                      `json:"action_taken,omitempty"`
	RequiresAuth bool                        `json:"requires_auth,omitempty"`
}

type BlockCardBody struct {
	CardLast4 string `json:"card_last4" binding:"omitempty,len=4,numeric"`
}

type ConvertEMIBody struct {
	TransactionID string `json:"transaction_id"`
	TenureMonths  int    `json:"tenure_months"`
}

func fromResponse(resp models.Response, source models.ClassificationSource) ChatResponse {
	status := StatusAnswered
	if resp.Status == models.ResponseFailed {
		status = StatusFailed
	}
	return ChatResponse{
		MessageID:    resp.MessageID,
		Status:       status,
		Reply:        resp.Text,
		Intent:       resp.Intent,
		Confidence:   resp.Confidence,
		Source:       source,
		Target:       resp.Target,
		ActionTaken:  resp.ActionTaken,
		RequiresAuth: resp.RequiresAuth,
	}
}
