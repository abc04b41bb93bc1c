package deadletter

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
)

type Handler struct {
	service *Service
	log     logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")
	{
		dl := v1.Group("/dead-letters")
		{
			dl.GET("", h.List)
			dl.GET("/:id", h.Get)
			dl.POST("/:id/replay", h.Replay)
		}
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.log.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// List godoc
// @Summary      List dead letters
// @Description  Archived dead letters, newest first
// @Tags         dead-letters
// @Produce      json
// @Param        pending  query     bool  false  "Only records not yet replayed"
// @Param        limit    query     int   false  "Maximum number of records (1-500)" default(50)
// @Param        offset   query     int   false  "Records to skip"
// @Success      200      {array}   Record
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /dead-letters [get]
func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		PendingOnly: c.Query("pending") == "true",
		Limit:       parseLimit(c.Query("limit")),
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Get godoc
// @Summary      Get a dead letter
// @Tags         dead-letters
// @Produce      json
// @Param        id   path      string  true  "Dead letter ID"
// @Success      200  {object}  Record
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /dead-letters/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Replay godoc
// @Summary      Replay a dead letter
// @Description  Republishes the message under its original routing key with a reset attempt count
// @Tags         dead-letters
// @Accept       json
// @Produce      json
// @Param        id       path      string         true  "Dead letter ID"
// @Param        request  body      ReplayRequest  true  "Operator performing the replay"
// @Success      200      {object}  Record
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      409      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /dead-letters/{id}/replay [post]
func (h *Handler) Replay(c *gin.Context) {
	var req ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("message", err.Error()).WithCause(err)))
		return
	}

	rec, err := h.service.Replay(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
