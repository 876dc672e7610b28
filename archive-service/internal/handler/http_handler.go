package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/service"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/response"
)

const (
	defaultLimit        = 20
	defaultHistoryLimit = 5
	maxLimit            = 100
)

type HTTPHandler struct {
	archiveService service.ArchiveService
}

func NewHTTPHandler(archiveService service.ArchiveService) *HTTPHandler {
	return &HTTPHandler{
		archiveService: archiveService,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/messages", h.GetRecentMessages)
		api.GET("/date-messages", h.GetMessagesByDate)
		api.GET("/available-dates", h.GetAvailableDates)
		api.GET("/pagination-messages", h.GetMessagesBefore)
		api.DELETE("/archive", h.ClearArchive)
		api.GET("/archive/count", h.CountMessages)
	}

	r.GET("/health", h.HealthCheck)
}

func (h *HTTPHandler) GetRecentMessages(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		response.BadRequest(c, "userId is required")
		return
	}

	limit, ok := parseLimit(c, defaultHistoryLimit)
	if !ok {
		return
	}

	msgs, err := h.archiveService.RecentByUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.internalError(c, err, "failed to get recent messages")
		return
	}

	response.Success(c, response.Envelope{"messages": msgs})
}

func (h *HTTPHandler) GetMessagesByDate(c *gin.Context) {
	streamID, ok := requireStream(c)
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		response.BadRequest(c, "date is required")
		return
	}

	offset := 0
	if s := c.Query("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.BadRequest(c, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	limit, ok := parseLimit(c, defaultLimit)
	if !ok {
		return
	}

	page, err := h.archiveService.MessagesByDate(c.Request.Context(), streamID, date, offset, limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDate) {
			response.BadRequest(c, "date must be YYYY-MM-DD or an ISO timestamp")
			return
		}
		h.internalError(c, err, "failed to get messages by date")
		return
	}

	response.Success(c, response.Envelope{
		"messages": page.Messages,
		"total":    page.Total,
	})
}

func (h *HTTPHandler) GetAvailableDates(c *gin.Context) {
	streamID, ok := requireStream(c)
	if !ok {
		return
	}

	dates, err := h.archiveService.AvailableDates(c.Request.Context(), streamID)
	if err != nil {
		h.internalError(c, err, "failed to get available dates")
		return
	}

	response.Success(c, response.Envelope{"dates": dates})
}

// GetMessagesBefore serves id pagination. Messages use the legacy stream_id
// field name.
func (h *HTTPHandler) GetMessagesBefore(c *gin.Context) {
	streamID, ok := requireStream(c)
	if !ok {
		return
	}

	var beforeID int64
	if s := c.Query("beforeId"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			response.BadRequest(c, "beforeId must be a non-negative integer")
			return
		}
		beforeID = n
	}

	limit, ok := parseLimit(c, defaultLimit)
	if !ok {
		return
	}

	msgs, err := h.archiveService.MessagesBefore(c.Request.Context(), streamID, beforeID, limit)
	if err != nil {
		h.internalError(c, err, "failed to get messages")
		return
	}

	legacy := make([]domain.LegacyMessage, 0, len(msgs))
	for _, m := range msgs {
		legacy = append(legacy, m.Legacy())
	}
	response.Success(c, response.Envelope{"messages": legacy})
}

func (h *HTTPHandler) ClearArchive(c *gin.Context) {
	streamID, ok := requireStream(c)
	if !ok {
		return
	}

	if err := h.archiveService.ClearArchive(c.Request.Context(), streamID); err != nil {
		h.internalError(c, err, "failed to clear archive")
		return
	}

	response.Success(c, nil)
}

func (h *HTTPHandler) CountMessages(c *gin.Context) {
	streamID, ok := requireStream(c)
	if !ok {
		return
	}

	n, err := h.archiveService.Count(c.Request.Context(), streamID)
	if err != nil {
		h.internalError(c, err, "failed to count messages")
		return
	}

	response.Success(c, response.Envelope{"count": n})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	response.Success(c, response.Envelope{"status": "ok"})
}

func (h *HTTPHandler) internalError(c *gin.Context, err error, msg string) {
	l := log.Ctx(c.Request.Context())
	l.Error().Err(err).Msg(msg)
	response.InternalError(c, msg)
}

func requireStream(c *gin.Context) (string, bool) {
	streamID := c.Query("streamId")
	if streamID == "" {
		response.BadRequest(c, "streamId is required")
		return "", false
	}
	return streamID, true
}

func parseLimit(c *gin.Context, def int) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		response.BadRequest(c, "limit must be a positive integer")
		return 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, true
}
