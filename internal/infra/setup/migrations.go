package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// MigrateDB 迁移全部表结构。
// 提醒台账和消耗集合的幂等性依赖唯一索引, 因此迁移失败必须中止启动,
// 绝不能在缺约束的库上运行。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.Room{},
		&domain.Member{},
		&domain.TurnSession{},
		&domain.Nudge{},
		&domain.Prompt{},
		&domain.UsedPrompt{},
		&domain.Message{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
