// Package actions holds the five mock account action handlers and the
// dispatcher that selects one for a classified intent.
package actions

import (
	"context"
	"fmt"
	"math"
	"strings"

	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
)

// EMIInterestRate is the annual rate applied to EMI conversions, in percent.
const EMIInterestRate = 15.0

var allowedTenures = map[int]bool{3: true, 6: true, 9: true, 12: true}

// Service implements the handlers. Each handler validates its own input and
// is idempotent for a repeated identical request.
type Service struct {
	repo AccountRepository
	log  logger.Logger
}

func NewService(repo AccountRepository, log logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) BlockCard(ctx context.Context, req BlockCardRequest) (*BlockCardResponse, error) {
	last4 := strings.TrimSpace(req.CardLast4)
	if last4 == "" {
		return nil, missing("card_last4")
	}

	var already bool
	acc, err := s.repo.Update(ctx, req.UserID, func(a *Account) error {
		if a.CardLast4 != last4 {
			return errors.ErrNotFound.WithDetail("message", fmt.Sprintf("No card ending in %s was found on your account.", last4))
		}
		if a.CardStatus == CardStatusBlocked {
			already = true
			return nil
		}
		a.CardStatus = CardStatusBlocked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !already {
		s.log.InfowCtx(ctx, "Card blocked", "card_last4", last4)
	}
	return &BlockCardResponse{
		Success:        true,
		CardLast4:      acc.CardLast4,
		NewStatus:      acc.CardStatus,
		AlreadyBlocked: already,
	}, nil
}

func (s *Service) DeliveryStatus(ctx context.Context, req DeliveryStatusRequest) (*DeliveryStatusResponse, error) {
	acc, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &DeliveryStatusResponse{
		Status:       acc.DeliveryStatus,
		ExpectedDate: acc.DeliveryDate,
		TrackingID:   acc.TrackingID,
	}, nil
}

func (s *Service) ConvertToEMI(ctx context.Context, req ConvertToEMIRequest) (*ConvertToEMIResponse, error) {
	// Without a transaction id the mock profile's purchase is converted.
	txnID := strings.ToUpper(strings.TrimSpace(req.TransactionID))
	if txnID == "" {
		txnID = constants.DefaultTransactionID
	}
	tenure := req.TenureMonths
	if tenure == 0 {
		tenure = constants.DefaultEMITenureMonths
	}
	if !allowedTenures[tenure] {
		return nil, errors.ErrValidation.WithDetail("message", fmt.Sprintf("EMI tenure must be 3, 6, 9 or 12 months, got %d.", tenure))
	}

	var plan ConvertToEMIResponse
	_, err := s.repo.Update(ctx, req.UserID, func(a *Account) error {
		if existing, ok := a.EMIPlans[txnID]; ok {
			plan = existing
			return nil
		}
		txn, ok := a.Transactions[txnID]
		if !ok {
			return errors.ErrNotFound.WithDetail("message", fmt.Sprintf("Transaction %s was not found on your account.", txnID))
		}
		plan = ConvertToEMIResponse{
			Success:            true,
			TransactionID:      txnID,
			TenureMonths:       tenure,
			MonthlyInstallment: installment(txn.Amount, EMIInterestRate, tenure),
			InterestRate:       EMIInterestRate,
		}
		a.EMIPlans[txnID] = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) GetBill(ctx context.Context, req GetBillRequest) (*GetBillResponse, error) {
	acc, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(acc.Bills) == 0 {
		return nil, errors.ErrNotFound.WithDetail("message", "No bills have been generated for your card yet.")
	}

	bill := acc.Bills[0]
	if month := strings.TrimSpace(req.Month); month != "" {
		found := false
		for _, b := range acc.Bills {
			if strings.HasPrefix(strings.ToLower(b.Month), strings.ToLower(month)) {
				bill, found = b, true
				break
			}
		}
		if !found {
			return nil, errors.ErrNotFound.WithDetail("message", fmt.Sprintf("No bill was found for %s.", month))
		}
	}

	return &GetBillResponse{
		Month:       bill.Month,
		TotalAmount: bill.TotalAmount,
		MinimumDue:  bill.MinimumDue,
		DueDate:     bill.DueDate,
	}, nil
}

func (s *Service) CheckOverdue(ctx context.Context, req CheckOverdueRequest) (*CheckOverdueResponse, error) {
	acc, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &CheckOverdueResponse{
		OverdueAmount:      acc.OverdueAmount,
		OutstandingBalance: acc.OutstandingBalance,
		DueDate:            acc.DueDate,
		IsOverdue:          acc.OverdueAmount > 0,
	}, nil
}

func missing(param string) error {
	return errors.ErrMissingParameter.WithDetail("parameter", param)
}

// installment is the standard reducing-balance EMI rounded to paise.
func installment(principal, annualRate float64, months int) float64 {
	r := annualRate / 12 / 100
	if r == 0 {
		return math.Round(principal/float64(months)*100) / 100
	}
	f := math.Pow(1+r, float64(months))
	return math.Round(principal*r*f/(f-1)*100) / 100
}
