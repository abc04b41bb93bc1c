package actions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
)

func newService() *Service {
	return NewService(NewMemoryRepository(), logger.NopLogger())
}

func TestBlockCard_Idempotent(t *testing.T) {
	s := newService()
	ctx := context.Background()

	first, err := s.BlockCard(ctx, BlockCardRequest{UserID: "u1", CardLast4: "1234"})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, CardStatusBlocked, first.NewStatus)
	assert.False(t, first.AlreadyBlocked)

	second, err := s.BlockCard(ctx, BlockCardRequest{UserID: "u1", CardLast4: "1234"})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, CardStatusBlocked, second.NewStatus)
	assert.True(t, second.AlreadyBlocked)

	other, err := s.BlockCard(ctx, BlockCardRequest{UserID: "u2", CardLast4: "1234"})
	require.NoError(t, err)
	assert.False(t, other.AlreadyBlocked, "accounts are per user")
}

func TestBlockCard_ConcurrentCallsBlockOnce(t *testing.T) {
	s := newService()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.BlockCard(context.Background(), BlockCardRequest{UserID: "u1", CardLast4: "1234"})
			if !assert.NoError(t, err) {
				return
			}
			if !resp.AlreadyBlocked {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)
}

func TestBlockCard_Errors(t *testing.T) {
	s := newService()

	_, err := s.BlockCard(context.Background(), BlockCardRequest{UserID: "u1"})
	assert.True(t, errors.IsMissingParameter(err))

	_, err = s.BlockCard(context.Background(), BlockCardRequest{UserID: "u1", CardLast4: "9999"})
	assert.True(t, errors.IsNotFound(err))
}

func TestDeliveryStatus(t *testing.T) {
	resp, err := newService().DeliveryStatus(context.Background(), DeliveryStatusRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "in_transit", resp.Status)
	assert.Equal(t, "2024-01-15", resp.ExpectedDate)
	assert.NotEmpty(t, resp.TrackingID)
}

func TestConvertToEMI(t *testing.T) {
	s := newService()
	ctx := context.Background()

	plan, err := s.ConvertToEMI(ctx, ConvertToEMIRequest{UserID: "u1", TransactionID: "txn123456"})
	require.NoError(t, err)
	assert.Equal(t, "TXN123456", plan.TransactionID)
	assert.Equal(t, 6, plan.TenureMonths)
	assert.InDelta(t, 2088.40, plan.MonthlyInstallment, 0.5)

	again, err := s.ConvertToEMI(ctx, ConvertToEMIRequest{UserID: "u1", TransactionID: "TXN123456", TenureMonths: 12})
	require.NoError(t, err)
	assert.Equal(t, *plan, *again, "a converted transaction keeps its plan")
}

func TestConvertToEMI_DefaultTransaction(t *testing.T) {
	s := newService()

	plan, err := s.ConvertToEMI(context.Background(), ConvertToEMIRequest{UserID: "u2", TenureMonths: 3})
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultTransactionID, plan.TransactionID)
	assert.Equal(t, 3, plan.TenureMonths)
	assert.True(t, plan.Success)
}

func TestConvertToEMI_Errors(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.ConvertToEMI(ctx, ConvertToEMIRequest{UserID: "u1", TransactionID: "TXN123456", TenureMonths: 7})
	assert.True(t, errors.IsValidation(err))

	_, err = s.ConvertToEMI(ctx, ConvertToEMIRequest{UserID: "u1", TransactionID: "TXN000000"})
	assert.True(t, errors.IsNotFound(err))
}

func TestGetBill(t *testing.T) {
	s := newService()
	ctx := context.Background()

	latest, err := s.GetBill(ctx, GetBillRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "January 2024", latest.Month)
	assert.Equal(t, 15000.0, latest.TotalAmount)

	dec, err := s.GetBill(ctx, GetBillRequest{UserID: "u1", Month: "december"})
	require.NoError(t, err)
	assert.Equal(t, "December 2023", dec.Month)

	_, err = s.GetBill(ctx, GetBillRequest{UserID: "u1", Month: "June"})
	assert.True(t, errors.IsNotFound(err))
}

func TestCheckOverdue(t *testing.T) {
	resp, err := newService().CheckOverdue(context.Background(), CheckOverdueRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, resp.IsOverdue)
	assert.Equal(t, 0.0, resp.OverdueAmount)
	assert.Equal(t, 15000.0, resp.OutstandingBalance)
	assert.Equal(t, "2024-01-25", resp.DueDate)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "INR 15,000.00", formatAmount(15000))
	assert.Equal(t, "INR 750.00", formatAmount(750))
	assert.Equal(t, "INR 1,234,567.89", formatAmount(1234567.89))
	assert.Equal(t, "INR 0.00", formatAmount(0))
}
