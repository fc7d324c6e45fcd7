package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is wide open for the API as a whole
		return true
	},
}

// Subscribe upgrades the connection to a websocket and streams every status
// snapshot for the document until the peer disconnects or the job is
// deleted. The current snapshot is replayed immediately so late subscribers
// start with state. Inbound text frames are answered with "pong: <text>"
// and never touch job state.
func (h *AnalysisHandler) Subscribe(c *gin.Context) {
	id := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "document_id", id, "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(id, sub)

	if status, err := h.store.GetStatus(id); err == nil {
		if err := conn.WriteJSON(status); err != nil {
			return
		}
	}

	// Reader goroutine: collects pings and detects disconnects. All
	// writes happen on this goroutine's parent loop; gorilla allows only
	// one concurrent writer.
	pings := make(chan string, 4)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				select {
				case pings <- string(data):
				default:
					// Drop pings faster than we answer them.
				}
			}
		}
	}()

	for {
		select {
		case status, ok := <-sub.Updates():
			if !ok {
				// Hub force-closed the subscriber (job deleted).
				return
			}
			if err := conn.WriteJSON(status); err != nil {
				return
			}
		case msg := <-pings:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong: "+msg)); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
