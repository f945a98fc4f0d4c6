package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/wager-game/internal/service"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketHandler 会话事件WebSocket处理器
type WebSocketHandler struct {
	events   *service.EventHub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(events *service.EventHub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 在生产环境中应该检查Origin
				return true
			},
		},
		logger: logger,
	}
}

// SessionEvents 订阅指定会话的实时事件流
func (h *WebSocketHandler) SessionEvents(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "缺少会话标识",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}

	ch, cancel := h.events.Subscribe(sessionID)

	h.logger.Info("WebSocket连接建立",
		zap.String("session_id", sessionID),
		zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(conn, ch, cancel, sessionID)
	go h.readPump(conn, cancel, sessionID)
}

// writePump 将事件与心跳写入连接
func (h *WebSocketHandler) writePump(conn *websocket.Conn, ch <-chan service.SessionEvent, cancel func(), sessionID string) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("WebSocket写入失败",
					zap.String("session_id", sessionID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 消费客户端消息，连接断开时取消订阅
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel func(), sessionID string) {
	defer func() {
		cancel()
		conn.Close()
		h.logger.Info("WebSocket连接关闭", zap.String("session_id", sessionID))
	}()

	conn.SetReadLimit(1024)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
