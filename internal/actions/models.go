package actions

import "time"

// Action names, used in logs, metrics and Response.ActionTaken.
const (
	ActionBlockCard      = "block_card"
	ActionDeliveryStatus = "delivery_status"
	ActionConvertToEMI   = "convert_to_emi"
	ActionGetBill        = "get_bill"
	ActionCheckOverdue   = "check_overdue"
)

const (
	CardStatusActive  = "active"
	CardStatusBlocked = "blocked"
)

type BlockCardRequest struct {
	UserID    string `json:"user_id"`
	CardLast4 string `json:"card_last4" binding:"omitempty,len=4,numeric"`
}

type BlockCardResponse struct {
	Success        bool   `json:"success"`
	CardLast4      string `json:"card_last4"`
	NewStatus      string `json:"new_status"`
	AlreadyBlocked bool   `json:"already_blocked"`
}

type DeliveryStatusRequest struct {
	UserID string `json:"user_id"`
}

type DeliveryStatusResponse struct {
	Status       string `json:"status"`
	ExpectedDate string `json:"expected_date"`
	TrackingID   string `json:"tracking_id"`
}

type ConvertToEMIRequest struct {
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	TenureMonths  int    `json:"tenure_months"`
}

type ConvertToEMIResponse struct {
	Success            bool    `json:"success"`
	TransactionID      string  `json:"transaction_id"`
	TenureMonths       int     `json:"tenure_months"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	InterestRate       float64 `json:"interest_rate"`
}

type GetBillRequest struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"`
}

type GetBillResponse struct {
	Month       string  `json:"month"`
	TotalAmount float64 `json:"total_amount"`
	MinimumDue  float64 `json:"minimum_due"`
	DueDate     string  `json:"due_date"`
}

type CheckOverdueRequest struct {
	UserID string `json:"user_id"`
}

type CheckOverdueResponse struct {
	OverdueAmount      float64 `json:"overdue_amount"`
	OutstandingBalance float64 `json:"outstanding_balance"`
	DueDate            string  `json:"due_date"`
	IsOverdue          bool    `json:"is_overdue"`
}

// Account is the mock card account the handlers read and update.
type Account struct {
	UserID             string
	CardLast4          string
	CardStatus         string
	CreditLimit        float64
	AvailableCredit    float64
	DeliveryStatus     string
	DeliveryDate       string
	TrackingID         string
	OverdueAmount      float64
	DueDate            string
	OutstandingBalance float64
	Transactions       map[string]Transaction
	Bills              []Bill // newest first
	EMIPlans           map[string]ConvertToEMIResponse
	UpdatedAt          time.Time
}

type Transaction struct {
	ID       string
	Merchant string
	Amount   float64
	Date     string
}

type Bill struct {
	Month       string // e.g. "January 2024"
	TotalAmount float64
	MinimumDue  float64
	DueDate     string
}

// Result is what the dispatcher hands back: the typed response plus the
// reply text shown to the user.
type Result struct {
	Action string      `json:"action"`
	Reply  string      `json:"reply"`
	Data   interface{} `json:"data"`
}
