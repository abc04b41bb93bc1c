package actions

import (
	"context"
	"fmt"
	"strings"

	"cardassist/internal/auth"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
)

// Dispatcher verifies the caller and runs the handler for an intent.
type Dispatcher struct {
	service  *Service
	verifier auth.Verifier
	log      logger.Logger
}

func NewDispatcher(service *Service, verifier auth.Verifier, log logger.Logger) *Dispatcher {
	return &Dispatcher{service: service, verifier: verifier, log: log}
}

// Dispatch fails with ErrUnauthorized before any handler runs when the token
// does not verify, and with ErrMissingParameter when a handler lacks input.
func (d *Dispatcher) Dispatch(ctx context.Context, intent models.Intent, params models.Params, authToken string) (*Result, error) {
	claims, err := d.verifier.Verify(authToken)
	if err != nil {
		metrics.IncActionInvocation(string(intent), "unauthorized")
		return nil, err
	}
	userID := claims.UserID

	var (
		result *Result
		action string
	)
	switch intent {
	case models.IntentBlockCard:
		action = ActionBlockCard
		last4, _ := params.String(models.ParamCardLast4)
		var resp *BlockCardResponse
		if resp, err = d.service.BlockCard(ctx, BlockCardRequest{UserID: userID, CardLast4: last4}); err == nil {
			result = &Result{Action: action, Reply: blockCardReply(resp), Data: resp}
		}
	case models.IntentCheckDeliveryStatus:
		action = ActionDeliveryStatus
		var resp *DeliveryStatusResponse
		if resp, err = d.service.DeliveryStatus(ctx, DeliveryStatusRequest{UserID: userID}); err == nil {
			result = &Result{Action: action, Reply: deliveryReply(resp), Data: resp}
		}
	case models.IntentConvertToEMI:
		action = ActionConvertToEMI
		txnID, _ := params.String(models.ParamTransactionID)
		tenure, _ := params.Int(models.ParamTenureMonths)
		var resp *ConvertToEMIResponse
		if resp, err = d.service.ConvertToEMI(ctx, ConvertToEMIRequest{UserID: userID, TransactionID: txnID, TenureMonths: tenure}); err == nil {
			result = &Result{Action: action, Reply: emiReply(resp), Data: resp}
		}
	case models.IntentDownloadStatement, models.IntentBillQuery:
		action = ActionGetBill
		month, _ := params.String(models.ParamMonth)
		var resp *GetBillResponse
		if resp, err = d.service.GetBill(ctx, GetBillRequest{UserID: userID, Month: month}); err == nil {
			result = &Result{Action: action, Reply: billReply(intent, resp), Data: resp}
		}
	case models.IntentCheckDueAmount:
		action = ActionCheckOverdue
		var resp *CheckOverdueResponse
		if resp, err = d.service.CheckOverdue(ctx, CheckOverdueRequest{UserID: userID}); err == nil {
			result = &Result{Action: action, Reply: overdueReply(resp), Data: resp}
		}
	case models.IntentGreeting, models.IntentKnowledgeQuery, models.IntentAccountInfo,
		models.IntentTransactionQuery, models.IntentRepaymentQuery, models.IntentUnknown:
		return nil, errors.ErrValidation.WithDetail("message", fmt.Sprintf("intent %s has no action handler", intent))
	default:
		return nil, errors.ErrValidation.WithDetail("message", fmt.Sprintf("unknown intent %q", intent))
	}

	if err != nil {
		metrics.IncActionInvocation(action, errorStatus(err))
		d.log.WarnwCtx(ctx, "Action failed", "action", action, "error", err)
		return nil, err
	}
	metrics.IncActionInvocation(action, "success")
	d.log.InfowCtx(ctx, "Action completed", "action", action)
	return result, nil
}

func errorStatus(err error) string {
	switch {
	case errors.IsMissingParameter(err):
		return "missing_parameter"
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}

func blockCardReply(r *BlockCardResponse) string {
	if r.AlreadyBlocked {
		return fmt.Sprintf("Your card ending in %s is already blocked.", r.CardLast4)
	}
	return fmt.Sprintf("Your card ending in %s has been blocked successfully. A replacement card can be requested from the app.", r.CardLast4)
}

func deliveryReply(r *DeliveryStatusResponse) string {
	status := strings.ReplaceAll(r.Status, "_", " ")
	return fmt.Sprintf("Your card is %s and is expected to be delivered by %s. Tracking ID: %s.", status, r.ExpectedDate, r.TrackingID)
}

func emiReply(r *ConvertToEMIResponse) string {
	return fmt.Sprintf("Transaction %s has been converted to EMI over %d months at %.1f%% p.a. Your monthly instalment is %s.",
		r.TransactionID, r.TenureMonths, r.InterestRate, formatAmount(r.MonthlyInstallment))
}

func billReply(intent models.Intent, r *GetBillResponse) string {
	text := fmt.Sprintf("Your bill amount for %s is %s. The minimum amount due is %s and the payment is due on %s.",
		r.Month, formatAmount(r.TotalAmount), formatAmount(r.MinimumDue), r.DueDate)
	if intent == models.IntentDownloadStatement {
		text += " Your statement can be downloaded from Bills > Statements in the app."
	}
	return text
}

func overdueReply(r *CheckOverdueResponse) string {
	if !r.IsOverdue {
		return fmt.Sprintf("You have no overdue amount. Your outstanding balance is %s, due on %s.",
			formatAmount(r.OutstandingBalance), r.DueDate)
	}
	return fmt.Sprintf("You have an overdue amount of %s. Your total outstanding balance is %s, due on %s.",
		formatAmount(r.OverdueAmount), formatAmount(r.OutstandingBalance), r.DueDate)
}

// formatAmount renders 15000 as "INR 15,000.00".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "INR " + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
