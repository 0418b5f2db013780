package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// 事件流是单向的 (服务端 → 客户端); 读循环只负责心跳和探测断开。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	roomID uint
	userID uint
	send   chan []byte // 用于向此客户端发送消息的缓冲通道
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomID uint, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		roomID: roomID,
		userID: userID,
		send:   make(chan []byte, 64),
	}
}

// RoomID 返回客户端所在的房间 ID
func (c *Client) RoomID() uint { return c.roomID }

// UserID 返回客户端的用户 ID
func (c *Client) UserID() uint { return c.userID }

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// TrySend 非阻塞投递: 客户端积压时丢弃事件。
// 事件只是刷新提示, 丢了下次轮询也能补上。
func (c *Client) TrySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
		logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
			Warn("Client send buffer full, dropping event")
	}
}

// readPump 只消费控制帧与客户端偶发消息, 探测连接断开。
// 它在自己的 goroutine 中运行。
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// 事件流单向: 客户端发来的文本消息直接忽略
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}
	}
}

// writePump 把 send 通道中的事件写入 WebSocket 连接, 并定期发送 Ping。
// 它在自己的 goroutine 中运行。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
					WithError(err).Debug("WebSocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
