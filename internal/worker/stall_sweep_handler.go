package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/service"
)

// StallSweepHandler 周期性扫描超时未答题的回合并强制推进
type StallSweepHandler struct {
	turnService *service.TurnService
}

// NewStallSweepHandler 创建停滞扫描处理器
func NewStallSweepHandler(turnService *service.TurnService) *StallSweepHandler {
	if turnService == nil {
		panic("TurnService cannot be nil for StallSweepHandler")
	}
	return &StallSweepHandler{turnService: turnService}
}

// ProcessTask 执行一次停滞扫描
func (h *StallSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	swept, err := h.turnService.StallSweep(ctx)
	if err != nil {
		logrus.Errorf("Stall sweep failed after advancing %d sessions: %v", swept, err)
		return err
	}
	if swept > 0 {
		logrus.WithField("swept", swept).Info("Stall sweep advanced stalled turns")
	}
	return nil
}
