package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/response"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/archive"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/hub"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/resolver"
)

const maxLimit = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DateLabel is an archived day with its display label.
type DateLabel struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

type HTTPHandler struct {
	flow  *archive.Flow
	dates *resolver.DateResolver
	ids   *resolver.IDResolver
	hub   *hub.Hub
	wsCfg config.WebSocketConfig
	now   func() time.Time
}

// NewHTTPHandler wires the viewer API. h may be nil when the live feed is
// disabled.
func NewHTTPHandler(flow *archive.Flow, dates *resolver.DateResolver, ids *resolver.IDResolver, h *hub.Hub, wsCfg config.WebSocketConfig) *HTTPHandler {
	return &HTTPHandler{
		flow:  flow,
		dates: dates,
		ids:   ids,
		hub:   h,
		wsCfg: wsCfg,
		now:   time.Now,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	streams := r.Group("/api/v1/streams/:stream_id")
	{
		streams.GET("/archive", h.GetArchivePrompt)
		streams.POST("/archive/accept", h.AcceptArchive)
		streams.DELETE("/archive", h.DeclineArchive)
		streams.GET("/dates", h.GetDates)
		streams.GET("/dates/next", h.GetNextDate)
		streams.GET("/messages/by-date", h.GetMessagesByDate)
		streams.GET("/messages/older", h.GetOlderMessages)
		streams.GET("/live", h.ServeLive)
	}

	r.GET("/health", h.HealthCheck)
}

func (h *HTTPHandler) GetArchivePrompt(c *gin.Context) {
	p := h.flow.ShouldPromptArchive(c.Request.Context(), c.Param("stream_id"))
	response.Success(c, response.Envelope{
		"hasArchive":   p.HasArchive,
		"messageCount": p.MessageCount,
	})
}

func (h *HTTPHandler) AcceptArchive(c *gin.Context) {
	res := h.flow.Accept(c.Request.Context(), c.Param("stream_id"))
	if !res.Success {
		response.BadGateway(c, res.Error)
		return
	}

	response.Success(c, response.Envelope{
		"date":     res.Date,
		"messages": res.Messages,
		"total":    res.Total,
		"nextDate": res.NextDate,
	})
}

// DeclineArchive starts clearing the archive and answers without waiting
// for the store.
func (h *HTTPHandler) DeclineArchive(c *gin.Context) {
	h.flow.Decline(c.Request.Context(), c.Param("stream_id"))
	c.JSON(http.StatusAccepted, response.Envelope{"success": true})
}

func (h *HTTPHandler) GetDates(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	dates, err := h.flow.AvailableDates(c.Request.Context(), c.Param("stream_id"), refresh)
	if err != nil {
		h.upstreamError(c, err, "failed to get available dates")
		return
	}

	now := h.now()
	labels := make([]DateLabel, 0, len(dates))
	for _, d := range dates {
		labels = append(labels, DateLabel{Date: d, Label: resolver.FormatForDisplay(d, now)})
	}
	response.Success(c, response.Envelope{"dates": labels})
}

func (h *HTTPHandler) GetNextDate(c *gin.Context) {
	current := c.Query("current")
	if current != "" {
		day, err := resolver.NormalizeDate(current)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		current = day
	}

	dates, err := h.flow.AvailableDates(c.Request.Context(), c.Param("stream_id"), false)
	if err != nil {
		h.upstreamError(c, err, "failed to get available dates")
		return
	}

	next, ok := resolver.NextDateToLoad(dates, current)
	response.Success(c, response.Envelope{"next": next, "hasMore": ok})
}

func (h *HTTPHandler) GetMessagesByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.BadRequest(c, "date is required")
		return
	}
	if _, err := resolver.NormalizeDate(date); err != nil {
		response.BadRequest(c, err.Error())
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

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	page := h.dates.FetchByDate(c.Request.Context(), c.Param("stream_id"), date, offset, limit)
	if !page.Success {
		response.BadGateway(c, page.Error)
		return
	}

	response.Success(c, response.Envelope{
		"date":     page.Date,
		"messages": page.Messages,
		"total":    page.Total,
	})
}

func (h *HTTPHandler) GetOlderMessages(c *gin.Context) {
	var beforeID int64
	if s := c.Query("before_id"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			response.BadRequest(c, "before_id must be a non-negative integer")
			return
		}
		beforeID = n
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	page := h.ids.FetchOlderThan(c.Request.Context(), c.Param("stream_id"), beforeID, limit)
	if !page.Success {
		response.BadGateway(c, page.Error)
		return
	}

	response.Success(c, response.Envelope{"messages": page.Messages})
}

// ServeLive upgrades the request to a WebSocket that receives the stream's
// classified messages.
func (h *HTTPHandler) ServeLive(c *gin.Context) {
	if h.hub == nil {
		response.NotFound(c, "live feed is disabled")
		return
	}

	l := log.Ctx(c.Request.Context())
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), c.Param("stream_id"), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	response.Success(c, response.Envelope{"status": "ok"})
}

func (h *HTTPHandler) upstreamError(c *gin.Context, err error, msg string) {
	l := log.Ctx(c.Request.Context())
	l.Warn().Err(err).Msg(msg)
	response.BadGateway(c, msg)
}

func parseLimit(c *gin.Context) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return domain.DefaultPageLimit, true
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
