package domain

import "time"

// 轮换与惩罚策略的集中常量。所有阈值都只在这里定义,
// 业务代码不允许散落字面量。
const (
	// MissedStreakRemovalThreshold 连续未完成多少个回合后将成员移出房间。
	MissedStreakRemovalThreshold = 3

	// StallWindow 所有成员都已提醒后, 回合保持无响应多久触发自动跳过。
	StallWindow = 24 * time.Hour

	// StallSweepInterval 周期扫描停滞回合的间隔。
	StallSweepInterval = 15 * time.Minute
)

// CooldownMinuteOptions 房间冷却配置允许的取值 (分钟)。
var CooldownMinuteOptions = []int{0, 60, 180, 360, 1440}

// IsAllowedCooldown 校验冷却配置是否为允许的枚举值。
func IsAllowedCooldown(minutes int) bool {
	for _, m := range CooldownMinuteOptions {
		if m == minutes {
			return true
		}
	}
	return false
}
