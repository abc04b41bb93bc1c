package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"cardassist/pkg/models"
)

type rule struct {
	intent  models.Intent
	pattern *regexp.Regexp
}

// rules are evaluated in order; the first match wins. Action-like intents sit
// above the informational ones so "block my card" never lands on ACCOUNT_INFO.
var rules = []rule{
	{models.IntentCheckDeliveryStatus, regexp.MustCompile(`(?i)\b(deliver(y|ed)?|track(ing)?|shipp(ed|ing)|dispatch(ed)?|card status|when will i (receive|get))\b`)},
	{models.IntentBlockCard, regexp.MustCompile(`(?i)\b(block|freeze|lost|stolen|deactivate|disable)\b`)},
	{models.IntentDownloadStatement, regexp.MustCompile(`(?i)\b(statements?|e-?statements?|download)\b`)},
	{models.IntentConvertToEMI, regexp.MustCompile(`(?i)\b(emis?|installments?|instalments?|pay in parts)\b`)},
	{models.IntentCheckDueAmount, regexp.MustCompile(`(?i)\b(due|overdue|outstanding|minimum payment|late fee)\b`)},
	{models.IntentRepaymentQuery, regexp.MustCompile(`(?i)\b(repay(ment)?s?|autopay|auto-?debit|pay (my|the) (bill|card)|make a payment)\b`)},
	{models.IntentBillQuery, regexp.MustCompile(`(?i)\b(bills?|billing|invoice)\b`)},
	{models.IntentGreeting, regexp.MustCompile(`(?i)\b(hi|hello|hey|hiya|greetings|good (morning|afternoon|evening))\b`)},
	{models.IntentAccountInfo, regexp.MustCompile(`(?i)\b(account|credit limit|limit|balance|available credit)\b`)},
	{models.IntentTransactionQuery, regexp.MustCompile(`(?i)\b(transactions?|purchases?|charges?|declined|refund|payment failed)\b`)},
}

var questionPattern = regexp.MustCompile(`(?i)^\s*(what|how|why|when|where|which|who|can|could|is|are|do|does)\b`)

// matchRules is the deterministic stage. It never returns an error.
func matchRules(text string) models.Intent {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.intent
		}
	}
	if questionPattern.MatchString(text) || strings.Contains(text, "?") {
		return models.IntentKnowledgeQuery
	}
	return models.IntentUnknown
}

var (
	last4Patterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[*x]{2,}\s*(\d{4})\b`),
		regexp.MustCompile(`(?i)\b(?:ending(?:\s+(?:in|with))?|last\s+(?:4|four)(?:\s+digits)?(?:\s+(?:is|are))?|card)\s*[:#]?\s*(\d{4})\b`),
	}
	amountPattern  = regexp.MustCompile(`(?i)(?:\brs\.?|\binr|₹|\$)\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	txnPattern     = regexp.MustCompile(`(?i)\bTXN\d+\b`)
	tenurePattern  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:months?|mo)\b`)
	monthPattern   = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|march|apr(?:il)?|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
	monthsByPrefix = map[string]string{
		"jan": "January", "feb": "February", "mar": "March", "apr": "April",
		"may": "May", "jun": "June", "jul": "July", "aug": "August",
		"sep": "September", "oct": "October", "nov": "November", "dec": "December",
	}
)

// "may" and "mar" are ordinary words too; they count as months only after a
// period preposition or before a year.
var ambiguousMonthPattern = regexp.MustCompile(`(?i)\b(?:for|in|of|from|since|during|last|this|next)\s+(may|mar)\b|\b(may|mar)\s+(?:\d{4}|'\d{2})\b`)

// extractParams pulls the well-known parameters out of free text.
func extractParams(text string) models.Params {
	params := models.Params{}

	for _, p := range last4Patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			params[models.ParamCardLast4] = m[1]
			break
		}
	}

	if m := amountPattern.FindStringSubmatch(text); m != nil {
		if amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			params[models.ParamAmount] = amount
		}
	}

	if m := txnPattern.FindString(text); m != "" {
		params[models.ParamTransactionID] = strings.ToUpper(m)
	}

	if m := tenurePattern.FindStringSubmatch(text); m != nil {
		if tenure, err := strconv.Atoi(m[1]); err == nil {
			params[models.ParamTenureMonths] = tenure
		}
	}

	if month := extractMonth(text); month != "" {
		params[models.ParamMonth] = month
	}

	return params
}

// extractMonth returns the earliest month mention, normalized to its full name.
func extractMonth(text string) string {
	var (
		name string
		at   = -1
	)
	if m := monthPattern.FindStringSubmatchIndex(text); m != nil {
		name, at = text[m[2]:m[3]], m[2]
	}
	if m := ambiguousMonthPattern.FindStringSubmatchIndex(text); m != nil {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		if at < 0 || start < at {
			name, at = text[start:end], start
		}
	}
	if at < 0 {
		return ""
	}
	return monthsByPrefix[strings.ToLower(name)[:3]]
}

// mergeParams keeps every key from primary and fills gaps from secondary.
func mergeParams(primary, secondary models.Params) models.Params {
	out := make(models.Params, len(primary)+len(secondary))
	for k, v := range secondary {
		out[k] = v
	}
	for k, v := range primary {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}
