package slack

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes wires the HTTP webhook alternative to Socket Mode
// onto router, grounded on the gin.RouterGroup + handler-per-route
// pattern of kdlbs-kandev/backend/internal/task/api/{router,handlers}.go.
// Slack's webhook delivery mode posts interaction payloads as a
// url-encoded "payload" form field and slash commands as plain form
// bodies, matching the original's offer of both `sse.rs`-style push
// and this pull alternative (spec 4.13's closing clause).
func RegisterRoutes(router gin.IRouter, dispatcher *Dispatcher, logger *zap.Logger) {
	router.POST("/slack/interactions", handleInteractions(dispatcher, logger))
	router.POST("/slack/commands", handleSlashCommand(dispatcher, logger))
}

func handleInteractions(dispatcher *Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.PostForm("payload")
		if raw == "" {
			c.Status(http.StatusBadRequest)
			return
		}

		var p interactionPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logger.Warn("malformed interaction webhook payload", zap.Error(err))
			c.Status(http.StatusBadRequest)
			return
		}

		dispatcher.Dispatch(c.Request.Context(), &p)
		c.Status(http.StatusOK)
	}
}

func handleSlashCommand(dispatcher *Dispatcher, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := slashCommandPayload{
			Command:   c.PostForm("command"),
			Text:      c.PostForm("text"),
			UserID:    c.PostForm("user_id"),
			ChannelID: c.PostForm("channel_id"),
		}
		if p.Command == "" {
			c.Status(http.StatusBadRequest)
			return
		}

		dispatcher.DispatchCommand(c.Request.Context(), &p)
		c.Status(http.StatusOK)
	}
}
