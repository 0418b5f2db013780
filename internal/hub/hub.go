package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Event 是推送给房间内在线客户端的回合事件。
// 客户端收到后刷新本地状态即可; 事件不携带权威数据,
// 权威状态永远来自 HTTP 接口。
type Event struct {
	Type   string            `json:"type"`
	RoomID uint              `json:"room_id"`
	UserID uint              `json:"user_id,omitempty"` // 事件针对的用户 (如 your_turn 的持有者)
	Data   map[string]string `json:"data,omitempty"`
}

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type   string  // "register", "unregister"
	Client *Client // 关联的客户端
}

// Hub 维护按房间组织的在线 WebSocket 客户端集合,
// 并把回合事件广播给对应房间 (或其中的指定用户)。
// 与业务层完全解耦: 投递方只使用 Broadcast / SendToUser。
type Hub struct {
	// 内部通道, 处理来自 Client 的注册/注销事件
	messageChan chan HubMessage

	// 关闭信号。messageChan 永远不关闭: 连接断开的注销请求
	// 和停机是并发的, 向已关闭通道发送会 panic, 用信号通道规避。
	done      chan struct{}
	closeOnce sync.Once

	// 客户端集合, 按 RoomID 组织
	// map[roomID]map[*Client]bool
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub() *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 256),
		done:        make(chan struct{}),
		rooms:       make(map[uint]map[*Client]bool),
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		}
	}
}

// Close 发出关闭信号, 结束 Run 循环。多次调用安全。
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Register 请求 Hub 注册一个新客户端 (非阻塞语义由通道缓冲提供)。
// Hub 已关闭时静默丢弃。
func (h *Hub) Register(client *Client) {
	select {
	case h.messageChan <- HubMessage{Type: "register", Client: client}:
	case <-h.done:
	}
}

// Unregister 请求 Hub 注销一个客户端。
// Hub 已关闭或持续积压时放弃并告警, 不阻塞调用方。
func (h *Hub) Unregister(client *Client) {
	select {
	case h.messageChan <- HubMessage{Type: "unregister", Client: client}:
	case <-h.done:
	case <-time.After(1 * time.Second):
		logrus.WithFields(logrus.Fields{"user_id": client.UserID(), "room_id": client.RoomID()}).
			Warn("Timeout sending unregister message to Hub channel")
	}
}

// Broadcast 把事件广播给房间内所有在线客户端。
func (h *Hub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Hub: failed to marshal event")
		return
	}

	h.roomsMu.RLock()
	clients := h.rooms[event.RoomID]
	targets := make([]*Client, 0, len(clients))
	for client := range clients {
		targets = append(targets, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range targets {
		client.TrySend(payload)
	}
}

// SendToUser 把事件只投递给房间内指定用户的连接 (可能有多个设备)。
// 返回实际投递的连接数; 用户不在线时为 0 —— 投递本来就是尽力而为。
func (h *Hub) SendToUser(roomID, userID uint, event Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Hub: failed to marshal event")
		return 0
	}

	h.roomsMu.RLock()
	targets := make([]*Client, 0, 2)
	for client := range h.rooms[roomID] {
		if client.UserID() == userID {
			targets = append(targets, client)
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range targets {
		client.TrySend(payload)
	}
	return len(targets)
}

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	roomID := client.RoomID()

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": client.UserID()}).
		Info("Client registered to Hub")
}

// unregisterClient 处理客户端注销逻辑
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()

	h.roomsMu.Lock()
	if clients, ok := h.rooms[roomID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
			if len(clients) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.roomsMu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": client.UserID()}).
		Info("Client unregistered from Hub")
}
