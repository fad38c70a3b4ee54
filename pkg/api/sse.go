package api

import (
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// sseHeaders prepares the response for server-sent events. The
// X-Accel-Buffering header stops nginx-style proxies from buffering
// the stream.
func sseHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// sendSSE writes one named SSE event and flushes it to the client.
// Non-string data is JSON-encoded.
func sendSSE(c *gin.Context, id, event string, data any) error {
	if err := sse.Encode(c.Writer, sse.Event{Id: id, Event: event, Data: data}); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
