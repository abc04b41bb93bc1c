package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/auth"
	"cardassist/internal/config"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/models"
)

func newDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	m := auth.NewManager(config.AuthConfig{JWTSecret: "dispatcher-test-secret"})
	token, err := m.Issue("u1")
	require.NoError(t, err)
	return NewDispatcher(newService(), m, logger.NopLogger()), token
}

func TestDispatch_RequiresToken(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), models.IntentBlockCard, models.Params{models.ParamCardLast4: "1234"}, "")
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))

	_, err = d.Dispatch(context.Background(), models.IntentBlockCard, models.Params{models.ParamCardLast4: "1234"}, "forged")
	assert.True(t, errors.IsUnauthorized(err))
}

func TestDispatch_Handlers(t *testing.T) {
	d, token := newDispatcher(t)

	tests := []struct {
		intent     models.Intent
		params     models.Params
		wantAction string
		wantReply  string
	}{
		{models.IntentBlockCard, models.Params{models.ParamCardLast4: "1234"}, ActionBlockCard, "ending in 1234 has been blocked"},
		{models.IntentCheckDeliveryStatus, nil, ActionDeliveryStatus, "in transit"},
		{models.IntentConvertToEMI, models.Params{models.ParamTransactionID: "TXN123456", models.ParamTenureMonths: 3}, ActionConvertToEMI, "over 3 months"},
		{models.IntentBillQuery, nil, ActionGetBill, "INR 15,000.00"},
		{models.IntentDownloadStatement, models.Params{models.ParamMonth: "December"}, ActionGetBill, "downloaded"},
		{models.IntentCheckDueAmount, nil, ActionCheckOverdue, "no overdue amount"},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			res, err := d.Dispatch(context.Background(), tt.intent, tt.params, token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, res.Action)
			assert.Contains(t, res.Reply, tt.wantReply)
			assert.NotNil(t, res.Data)
		})
	}
}

func TestDispatch_MissingParameter(t *testing.T) {
	d, token := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), models.IntentBlockCard, models.Params{}, token)
	require.Error(t, err)
	assert.True(t, errors.IsMissingParameter(err))

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "card_last4", appErr.Details["parameter"])
}

func TestDispatch_NonActionIntent(t *testing.T) {
	d, token := newDispatcher(t)

	for _, intent := range []models.Intent{models.IntentGreeting, models.IntentUnknown, "MADE_UP"} {
		_, err := d.Dispatch(context.Background(), intent, nil, token)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	}
}

func TestDispatch_RepeatedBlockReturnsCurrentState(t *testing.T) {
	d, token := newDispatcher(t)
	params := models.Params{models.ParamCardLast4: "1234"}

	_, err := d.Dispatch(context.Background(), models.IntentBlockCard, params, token)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), models.IntentBlockCard, params, token)
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "already blocked")
	assert.True(t, res.Data.(*BlockCardResponse).AlreadyBlocked)
}
