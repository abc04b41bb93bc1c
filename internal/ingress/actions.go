package ingress

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardassist/internal/actions"
	"cardassist/internal/auth"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
)

// ActionsHandler exposes the action handlers directly to authenticated
// callers. The user always comes from the bearer token, never the body.
type ActionsHandler struct {
	service  *actions.Service
	verifier auth.Verifier
	log      logger.Logger
}

func NewActionsHandler(service *actions.Service, verifier auth.Verifier, log logger.Logger) *ActionsHandler {
	return &ActionsHandler{service: service, verifier: verifier, log: log}
}

func (h *ActionsHandler) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/v1/actions", auth.RequireBearer(h.verifier))
	{
		group.POST("/block-card", h.BlockCard)
		group.GET("/delivery-status", h.DeliveryStatus)
		group.POST("/convert-emi", h.ConvertEMI)
		group.GET("/bill", h.Bill)
		group.GET("/overdue", h.Overdue)
	}
}

func (h *ActionsHandler) handleError(c *gin.Context, action string, err error) {
	metrics.IncActionInvocation(action, "error")
	h.log.WarnwCtx(c.Request.Context(), "Action request failed", "action", action, "error", err)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func userID(c *gin.Context) string {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return ""
	}
	return claims.UserID
}

// BlockCard godoc
// @Summary      Block a card
// @Tags         actions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      BlockCardBody  true  "Card to block"
// @Success      200      {object}  actions.BlockCardResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      401      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /actions/block-card [post]
func (h *ActionsHandler) BlockCard(c *gin.Context) {
	var body BlockCardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("message", err.Error()).WithCause(err)))
		return
	}

	resp, err := h.service.BlockCard(c.Request.Context(), actions.BlockCardRequest{UserID: userID(c), CardLast4: body.CardLast4})
	if err != nil {
		h.handleError(c, actions.ActionBlockCard, err)
		return
	}
	metrics.IncActionInvocation(actions.ActionBlockCard, "success")
	c.JSON(http.StatusOK, resp)
}

// DeliveryStatus godoc
// @Summary      Card delivery status
// @Tags         actions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  actions.DeliveryStatusResponse
// @Failure      401  {object}  errors.ErrorResponse
// @Router       /actions/delivery-status [get]
func (h *ActionsHandler) DeliveryStatus(c *gin.Context) {
	resp, err := h.service.DeliveryStatus(c.Request.Context(), actions.DeliveryStatusRequest{UserID: userID(c)})
	if err != nil {
		h.handleError(c, actions.ActionDeliveryStatus, err)
		return
	}
	metrics.IncActionInvocation(actions.ActionDeliveryStatus, "success")
	c.JSON(http.StatusOK, resp)
}

// ConvertEMI godoc
// @Summary      Convert a transaction to EMI
// @Tags         actions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ConvertEMIBody  true  "Transaction and tenure"
// @Success      200      {object}  actions.ConvertToEMIResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      401      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /actions/convert-emi [post]
func (h *ActionsHandler) ConvertEMI(c *gin.Context) {
	var body ConvertEMIBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("message", err.Error()).WithCause(err)))
		return
	}

	resp, err := h.service.ConvertToEMI(c.Request.Context(), actions.ConvertToEMIRequest{
		UserID:        userID(c),
		TransactionID: body.TransactionID,
		TenureMonths:  body.TenureMonths,
	})
	if err != nil {
		h.handleError(c, actions.ActionConvertToEMI, err)
		return
	}
	metrics.IncActionInvocation(actions.ActionConvertToEMI, "success")
	c.JSON(http.StatusOK, resp)
}

// Bill godoc
// @Summary      Bill for a month
// @Tags         actions
// @Produce      json
// @Security     BearerAuth
// @Param        month  query     string  false  "Billing month, latest when empty"
// @Success      200    {object}  actions.GetBillResponse
// @Failure      401    {object}  errors.ErrorResponse
// @Failure      404    {object}  errors.ErrorResponse
// @Router       /actions/bill [get]
func (h *ActionsHandler) Bill(c *gin.Context) {
	resp, err := h.service.GetBill(c.Request.Context(), actions.GetBillRequest{UserID: userID(c), Month: c.Query("month")})
	if err != nil {
		h.handleError(c, actions.ActionGetBill, err)
		return
	}
	metrics.IncActionInvocation(actions.ActionGetBill, "success")
	c.JSON(http.StatusOK, resp)
}

// Overdue godoc
// @Summary      Overdue and outstanding amounts
// @Tags         actions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  actions.CheckOverdueResponse
// @Failure      401  {object}  errors.ErrorResponse
// @Router       /actions/overdue [get]
func (h *ActionsHandler) Overdue(c *gin.Context) {
	resp, err := h.service.CheckOverdue(c.Request.Context(), actions.CheckOverdueRequest{UserID: userID(c)})
	if err != nil {
		h.handleError(c, actions.ActionCheckOverdue, err)
		return
	}
	metrics.IncActionInvocation(actions.ActionCheckOverdue, "success")
	c.JSON(http.StatusOK, resp)
}
