package domain

import "time"

// Member 表示房间内的一名成员。
// 加入/退出由外部的成员管理服务负责；本核心只会在惩罚策略触发时
// 修改 MissedStreak 或移除成员。
type Member struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       uint      `gorm:"not null;uniqueIndex:idx_room_user,priority:1"` // 所属房间
	UserID       uint      `gorm:"not null;uniqueIndex:idx_room_user,priority:2;index"`
	Role         string    `gorm:"size:10;not null;default:'member'"` // host 或 member
	MissedStreak int       `gorm:"not null;default:0"`                // 连续未完成回合数, 任何一次完成都会清零
	JoinedAt     time.Time `gorm:"not null;index"`                    // 加入时间, 轮换顺序的第一排序键
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

const (
	RoleHost   = "host"
	RoleMember = "member"
)

// IsHost 判断成员是否为房主。
func (m *Member) IsHost() bool {
	return m.Role == RoleHost
}
