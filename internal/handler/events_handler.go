package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

const eventsKeepAlive = 25 * time.Second

type changeSubscriber interface {
	Subscribe() (<-chan models.ChangeEvent, func())
}

type eventClientTracker interface {
	TrackEventClient(delta int)
}

// EventsHandler streams workspace change events as server-sent events.
type EventsHandler struct {
	source    changeSubscriber
	tracker   eventClientTracker
	keepAlive time.Duration
}

// NewEventsHandler constructs the handler. tracker may be nil.
func NewEventsHandler(source changeSubscriber, tracker eventClientTracker) *EventsHandler {
	return &EventsHandler{source: source, tracker: tracker, keepAlive: eventsKeepAlive}
}

// Stream godoc
// @Summary Change stream
// @Description Server-sent events, one "change" event per refreshed table. EventSource clients pass the token as access_token.
// @Tags Events
// @Produce text/event-stream
// @Param access_token query string false "Access token for clients that cannot set headers"
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	events, cancel := h.source.Subscribe()
	defer cancel()
	if h.tracker != nil {
		h.tracker.TrackEventClient(1)
		defer h.tracker.TrackEventClient(-1)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"at": time.Now().UTC()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("change", event)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
