package domain

import "time"

// Prompt 是题库中的一条题目, 由外部维护, 对本核心只读。
type Prompt struct {
	ID        uint      `gorm:"primaryKey"`
	Text      string    `gorm:"type:text;not null"`
	Type      string    `gorm:"size:10;not null"`       // text 或 photo
	Mode      string    `gorm:"size:32;not null;index"` // 题目模式
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// UsedPrompt 标记某房间在某模式下已抽到过的题目 (洗牌袋的消耗集合)。
// 当消耗数量达到该模式题库总量时整体清空, 实现 "抽完一轮前不重复"。
type UsedPrompt struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"not null;uniqueIndex:idx_room_mode_prompt,priority:1"`
	Mode      string    `gorm:"size:32;not null;uniqueIndex:idx_room_mode_prompt,priority:2"`
	PromptID  uint      `gorm:"not null;uniqueIndex:idx_room_mode_prompt,priority:3"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
