// Package ingress is the HTTP front door of the router service: chat
// submission with a bounded wait for the reply, reply polling and the direct
// action endpoints.
package ingress

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cardassist/internal/auth"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/internal/response"
	"cardassist/internal/router"
	"cardassist/pkg/errors"
	"cardassist/pkg/logging"
	"cardassist/pkg/metrics"
	"cardassist/pkg/middleware"
	"cardassist/pkg/models"
)

type Router interface {
	Route(ctx context.Context, env *models.MessageEnvelope) (models.RoutingDecision, error)
}

type Handler struct {
	router       Router
	responses    response.Store
	verifier     auth.Verifier
	replyTimeout time.Duration
	pollInterval time.Duration
	log          logger.Logger
}

func NewHandler(r Router, responses response.Store, verifier auth.Verifier, cfg config.IngressConfig, log logger.Logger) *Handler {
	h := &Handler{
		router:       r,
		responses:    responses,
		verifier:     verifier,
		replyTimeout: cfg.ReplyTimeout,
		pollInterval: cfg.PollInterval,
		log:          log,
	}
	if h.replyTimeout <= 0 {
		h.replyTimeout = constants.DefaultReplyTimeout
	}
	if h.pollInterval <= 0 {
		h.pollInterval = constants.DefaultPollInterval
	}
	return h
}

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("", h.Chat)
			chat.GET("/:message_id", h.GetReply)
		}
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.log.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// Chat godoc
// @Summary      Send a chat message
// @Description  Classifies the message and answers inline, or queues it and waits up to the reply timeout for the answer
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        message  body      ChatRequest  true  "Chat message"
// @Success      200      {object}  ChatResponse
// @Success      202      {object}  ChatResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      503      {object}  ChatResponse
// @Router       /chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.IncIngressRequest("unknown", "invalid")
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("message", err.Error()).WithCause(err)))
		return
	}

	token := req.Token
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	userID := req.UserID
	if userID == "" && token != "" {
		if claims, err := h.verifier.Verify(token); err == nil {
			userID = claims.UserID
		}
	}
	channel := models.Channel(req.Channel)
	if channel == "" {
		channel = models.ChannelWeb
	}

	builder := models.NewMessageEnvelopeBuilder().
		WithUser(userID).
		WithChannel(channel).
		WithText(req.Message).
		WithAuthToken(token)
	if requestID := c.GetString(middleware.RequestIDKey); requestID != "" {
		builder = builder.WithTraceID(requestID)
	}
	env := builder.Build()

	ctx := logging.WithMessageID(c.Request.Context(), env.MessageID)
	ctx = logging.WithUserID(ctx, env.UserID)
	ctx = logging.WithChannel(ctx, string(env.Channel))

	decision, err := h.router.Route(ctx, env)
	if err != nil {
		switch {
		case errors.IsBrokerUnavailable(err):
			metrics.IncIngressRequest(string(channel), "unavailable")
			h.log.WarnwCtx(ctx, "Broker unavailable, asking caller to retry", "error", err)
			c.JSON(http.StatusServiceUnavailable, ChatResponse{
				MessageID: env.MessageID,
				Status:    StatusUnavailable,
				Reply:     constants.RetryLaterReply,
			})
		case errors.IsValidation(err):
			metrics.IncIngressRequest(string(channel), "invalid")
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(err))
		default:
			metrics.IncIngressRequest(string(channel), "error")
			h.HandleError(c, err)
		}
		return
	}

	if !decision.Queued {
		metrics.IncIngressRequest(string(channel), "direct")
		resp := models.Response{
			MessageID:  env.MessageID,
			UserID:     env.UserID,
			Channel:    env.Channel,
			Text:       router.DirectReply(decision.Classification.Intent),
			Intent:     decision.Classification.Intent,
			Confidence: decision.Classification.Confidence,
			Target:     decision.DispatchTarget,
			Status:     models.ResponseAnswered,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.responses.Deliver(ctx, resp); err != nil {
			h.log.WarnwCtx(ctx, "Failed to store direct reply", "error", err)
		}
		c.JSON(http.StatusOK, fromResponse(resp, decision.Classification.Source))
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.replyTimeout)
	defer cancel()
	resp, err := response.Wait(waitCtx, h.responses, env.MessageID, h.pollInterval)
	if err != nil {
		if ctx.Err() == nil && (stderrors.Is(err, context.DeadlineExceeded) || waitCtx.Err() != nil) {
			metrics.IncIngressRequest(string(channel), "queued")
			c.JSON(http.StatusAccepted, ChatResponse{
				MessageID:  env.MessageID,
				Status:     StatusQueued,
				Reply:      constants.QueuedReply,
				Intent:     decision.Classification.Intent,
				Confidence: decision.Classification.Confidence,
				Source:     decision.Classification.Source,
				Target:     decision.DispatchTarget,
			})
			return
		}
		metrics.IncIngressRequest(string(channel), "error")
		h.HandleError(c, err)
		return
	}

	metrics.IncIngressRequest(string(channel), string(resp.Status))
	c.JSON(http.StatusOK, fromResponse(*resp, decision.Classification.Source))
}

// GetReply godoc
// @Summary      Poll for a reply
// @Description  Returns the reply for a queued message, or 202 while it is still being processed
// @Tags         chat
// @Produce      json
// @Param        message_id  path      string  true  "Message ID"
// @Success      200         {object}  ChatResponse
// @Success      202         {object}  ChatResponse
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /chat/{message_id} [get]
func (h *Handler) GetReply(c *gin.Context) {
	id := c.Param("message_id")
	resp, err := h.responses.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusAccepted, ChatResponse{MessageID: id, Status: StatusQueued, Reply: constants.QueuedReply})
		return
	}
	c.JSON(http.StatusOK, fromResponse(*resp, ""))
}
