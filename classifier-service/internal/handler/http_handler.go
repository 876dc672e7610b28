package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/service"
	"github.com/shamilramasanov/mellchat-sub003/pkg/response"
)

type HTTPHandler struct {
	classifyService service.ClassifyService
}

func NewHTTPHandler(classifyService service.ClassifyService) *HTTPHandler {
	return &HTTPHandler{
		classifyService: classifyService,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/classify", h.Classify)
	}

	r.GET("/health", h.HealthCheck)
}

// Classify classifies a raw chat record. Content of any JSON type is
// accepted; anything that is not text is simply not a question.
func (h *HTTPHandler) Classify(c *gin.Context) {
	var raw domain.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(raw.UserID) == "" {
		response.BadRequest(c, domain.ErrMissingUser.Error())
		return
	}

	ctx := c.Request.Context()
	msg, isText := raw.ChatMessage(time.Now())

	var classified domain.ChatMessage
	if isText {
		classified = h.classifyService.ClassifyMessage(ctx, msg)
	} else {
		classified = msg.WithQuestion(h.classifyService.ClassifyContent(ctx, raw.UserID, raw.Content))
	}

	response.Success(c, response.Envelope{
		"isQuestion": classified.Question(),
		"message":    classified,
	})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	response.Success(c, response.Envelope{"status": "ok"})
}
