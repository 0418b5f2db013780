package websocket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/hub"
	"github.com/spinthechat/turn-chat/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
// 只有房间成员允许订阅该房间的回合事件。
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	hub        *hub.Hub
	membership *service.MembershipService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub, membership *service.MembershipService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if membership == nil {
		panic("MembershipService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:   upgrader,
		hub:        h,
		membership: membership,
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/rooms/{roomId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证用户 ID (由 Auth 中间件设置)
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	// 2. 获取并验证房间 ID (从 URL 参数)
	roomIDStr := c.Param("roomId")
	roomIDUint64, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil {
		logCtx.WithError(err).Warnf("WS Handler: Invalid room ID format: %s", roomIDStr)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID format"})
		return
	}
	roomID := uint(roomIDUint64)
	logCtx = logCtx.WithField("room_id", roomID)

	// 3. 校验成员身份: 非成员不允许订阅
	if _, err := h.membership.IsMember(c.Request.Context(), roomID, userID); err != nil {
		if errors.Is(err, service.ErrNotAMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this room"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	// 4. 升级到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写了响应, 这里只记日志
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	// 5. 创建客户端并注册到 Hub
	client := hub.NewClient(h.hub, conn, roomID, userID)
	h.hub.Register(client)
	client.Run()
	logCtx.Info("WS Handler: client connected")
}
