package models

import "time"

type DispatchTarget string

const (
	TargetKnowledgeBase      DispatchTarget = "knowledge_base"
	TargetActionAPI          DispatchTarget = "action_api"
	TargetGenerativeFallback DispatchTarget = "generative_fallback"
	TargetDirectReply        DispatchTarget = "direct_reply"
)

// RoutingKey is the broker key a queued decision is published under. Direct
// replies never reach the broker and have none.
func (t DispatchTarget) RoutingKey() string {
	switch t {
	case TargetKnowledgeBase:
		return "knowledge"
	case TargetActionAPI:
		return "action"
	case TargetGenerativeFallback:
		return "generative"
	default:
		return ""
	}
}

type RoutingDecision struct {
	EnvelopeRef    string               `json:"envelope_ref"`
	Classification ClassificationResult `json:"classification"`
	DispatchTarget DispatchTarget       `json:"dispatch_target"`
	Queued         bool                 `json:"queued"`
}

// RoutedMessage is the broker payload: the envelope plus the router's decision.
type RoutedMessage struct {
	Envelope       MessageEnvelope      `json:"envelope"`
	Classification ClassificationResult `json:"classification"`
	Target         DispatchTarget       `json:"target"`
	RoutedAt       time.Time            `json:"routed_at"`
}
