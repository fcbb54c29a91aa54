package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal/internal/dto"
	"github.com/noah-isme/student-portal/pkg/middleware/cors"
	"github.com/noah-isme/student-portal/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type screenWatcher interface {
	Watch(ctx context.Context, id string) (<-chan dto.ScreenEvent, func(), error)
}

// WatchHandler streams screen state changes over a websocket.
type WatchHandler struct {
	watcher  screenWatcher
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWatchHandler constructs the handler. Origins follow the CORS allow list.
func NewWatchHandler(watcher screenWatcher, allowedOrigins []string, logger *zap.Logger) *WatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cors.OriginSet(allowedOrigins)
	return &WatchHandler{
		watcher: watcher,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.Allowed(origins, origin)
			},
		},
	}
}

// Watch godoc
// @Summary Stream screen states of a session
// @Description Upgrades to a websocket and sends one JSON ScreenEvent per state change, following navigation, until the session ends.
// @Tags Screens
// @Param id path string true "Session ID"
// @Success 101
// @Router /sessions/{id}/screen/watch [get]
func (h *WatchHandler) Watch(c *gin.Context) {
	id := c.Param("id")
	events, stop, err := h.watcher.Watch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.Close() //nolint:errcheck

	gone := make(chan struct{})
	go h.readPump(conn, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("watch write failed", zap.String("session_id", id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// readPump discards client frames and closes gone when the peer leaves.
func (h *WatchHandler) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("watch closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}
