package knowledge

import "cardassist/pkg/models"

type Category string

const (
	CategoryAccount      Category = "account"
	CategoryDelivery     Category = "delivery"
	CategoryTransactions Category = "transactions"
	CategoryBills        Category = "bills"
	CategoryRepayments   Category = "repayments"
	CategoryCollections  Category = "collections"
)

// Categories lists the six datasets in load order.
var Categories = []Category{
	CategoryAccount,
	CategoryDelivery,
	CategoryTransactions,
	CategoryBills,
	CategoryRepayments,
	CategoryCollections,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Entry is one immutable knowledge record.
type Entry struct {
	Category Category `json:"category" bson:"category"`
	Question string   `json:"question" bson:"question"`
	Keywords []string `json:"keywords" bson:"keywords"`
	Answer   string   `json:"answer" bson:"answer"`
}

type dataset struct {
	Category Category `json:"category"`
	Entries  []Entry  `json:"entries"`
}

// Result is the outcome of a search. Matched is false for the no-match answer.
type Result struct {
	Category Category `json:"category,omitempty"`
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer"`
	Matched  bool     `json:"matched"`
}

// CategoryFor returns the dataset scoped to intent, if any.
func CategoryFor(intent models.Intent) (Category, bool) {
	switch intent {
	case models.IntentAccountInfo:
		return CategoryAccount, true
	case models.IntentCheckDeliveryStatus:
		return CategoryDelivery, true
	case models.IntentTransactionQuery:
		return CategoryTransactions, true
	case models.IntentBillQuery:
		return CategoryBills, true
	case models.IntentRepaymentQuery:
		return CategoryRepayments, true
	case models.IntentCheckDueAmount:
		return CategoryCollections, true
	default:
		return "", false
	}
}
