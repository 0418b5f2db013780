package domain

import "time"

// Message 是写入消息流的一条记录 (系统消息或答案)。
// 本核心只追加, 从不读回; 展示和渲染由消息服务负责。
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"not null;index"`
	AuthorID  *uint     // nil 表示系统消息
	Kind      string    `gorm:"size:20;not null"`
	Payload   string    `gorm:"type:text;not null"` // JSON 文本
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

const (
	MessageKindSystem      = "system"
	MessageKindAnswer      = "answer"
	MessageKindPhotoAnswer = "photo_answer"
)
