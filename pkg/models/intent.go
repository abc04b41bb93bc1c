package models

import "strings"

// Intent is the closed set of things a user message can ask for.
type Intent string

const (
	IntentGreeting            Intent = "GREETING"
	IntentKnowledgeQuery      Intent = "KNOWLEDGE_QUERY"
	IntentCheckDeliveryStatus Intent = "CHECK_DELIVERY_STATUS"
	IntentBlockCard           Intent = "BLOCK_CARD"
	IntentDownloadStatement   Intent = "DOWNLOAD_STATEMENT"
	IntentConvertToEMI        Intent = "CONVERT_TO_EMI"
	IntentCheckDueAmount      Intent = "CHECK_DUE_AMOUNT"
	IntentAccountInfo         Intent = "ACCOUNT_INFO"
	IntentTransactionQuery    Intent = "TRANSACTION_QUERY"
	IntentBillQuery           Intent = "BILL_QUERY"
	IntentRepaymentQuery      Intent = "REPAYMENT_QUERY"
	IntentUnknown             Intent = "UNKNOWN"
)

var allIntents = []Intent{
	IntentGreeting,
	IntentKnowledgeQuery,
	IntentCheckDeliveryStatus,
	IntentBlockCard,
	IntentDownloadStatement,
	IntentConvertToEMI,
	IntentCheckDueAmount,
	IntentAccountInfo,
	IntentTransactionQuery,
	IntentBillQuery,
	IntentRepaymentQuery,
	IntentUnknown,
}

func AllIntents() []Intent {
	out := make([]Intent, len(allIntents))
	copy(out, allIntents)
	return out
}

// ParseIntent accepts labels in any case, with spaces or dashes for underscores.
func ParseIntent(s string) (Intent, bool) {
	label := strings.ToUpper(strings.TrimSpace(s))
	label = strings.NewReplacer(" ", "_", "-", "_").Replace(label)
	for _, intent := range allIntents {
		if string(intent) == label {
			return intent, true
		}
	}
	return IntentUnknown, false
}
