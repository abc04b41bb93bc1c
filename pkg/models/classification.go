package models

import (
	"fmt"
	"strconv"
)

type ClassificationSource string

const (
	SourceLLM          ClassificationSource = "llm"
	SourceRuleFallback ClassificationSource = "rule_fallback"
)

// Well-known extracted parameter names.
const (
	ParamCardLast4     = "card_last4"
	ParamAmount        = "amount"
	ParamMonth         = "month"
	ParamTransactionID = "transaction_id"
	ParamTenureMonths  = "tenure_months"
)

// Params holds string or numeric values extracted from a message.
type Params map[string]interface{}

func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (p Params) Int(key string) (int, bool) {
	f, ok := p.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

type ClassificationResult struct {
	Intent          Intent               `json:"intent"`
	Confidence      float64              `json:"confidence"`
	Source          ClassificationSource `json:"source"`
	ExtractedParams Params               `json:"extracted_params,omitempty"`
}
