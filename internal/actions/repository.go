package actions

import (
	"context"
	"sync"
	"time"
)

// AccountRepository stores mock accounts. Update applies fn atomically.
type AccountRepository interface {
	Get(ctx context.Context, userID string) (Account, error)
	Update(ctx context.Context, userID string, fn func(*Account) error) (Account, error)
}

// MemoryRepository gives every user their own copy of the mock profile on
// first access.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*Account
	seed     func(userID string) Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*Account),
		seed:     MockAccount,
	}
}

func (r *MemoryRepository) Get(_ context.Context, userID string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.load(userID)), nil
}

func (r *MemoryRepository) Update(_ context.Context, userID string, fn func(*Account) error) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.load(userID)
	next := clone(current)
	if err := fn(&next); err != nil {
		return clone(current), err
	}
	next.UpdatedAt = time.Now().UTC()
	r.accounts[userID] = &next
	return clone(&next), nil
}

func (r *MemoryRepository) load(userID string) *Account {
	acc, ok := r.accounts[userID]
	if !ok {
		seeded := r.seed(userID)
		acc = &seeded
		r.accounts[userID] = acc
	}
	return acc
}

func clone(a *Account) Account {
	out := *a
	out.Transactions = make(map[string]Transaction, len(a.Transactions))
	for k, v := range a.Transactions {
		out.Transactions[k] = v
	}
	out.Bills = append([]Bill(nil), a.Bills...)
	out.EMIPlans = make(map[string]ConvertToEMIResponse, len(a.EMIPlans))
	for k, v := range a.EMIPlans {
		out.EMIPlans[k] = v
	}
	return out
}

// MockAccount is the demo profile every user starts from.
func MockAccount(userID string) Account {
	return Account{
		UserID:             userID,
		CardLast4:          "1234",
		CardStatus:         CardStatusActive,
		CreditLimit:        50000,
		AvailableCredit:    35000,
		DeliveryStatus:     "in_transit",
		DeliveryDate:       "2024-01-15",
		TrackingID:         "TRK987654321",
		OverdueAmount:      0,
		DueDate:            "2024-01-25",
		OutstandingBalance: 15000,
		Transactions: map[string]Transaction{
			"TXN123456": {ID: "TXN123456", Merchant: "Electronics Store", Amount: 12000, Date: "2024-01-05"},
			"TXN123457": {ID: "TXN123457", Merchant: "Grocery Mart", Amount: 3000, Date: "2024-01-08"},
		},
		Bills: []Bill{
			{Month: "January 2024", TotalAmount: 15000, MinimumDue: 750, DueDate: "2024-01-25"},
			{Month: "December 2023", TotalAmount: 12500, MinimumDue: 625, DueDate: "2023-12-25"},
		},
		EMIPlans: map[string]ConvertToEMIResponse{},
	}
}
