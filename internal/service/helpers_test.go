package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/spinthechat/turn-chat/internal/notify"
	"github.com/spinthechat/turn-chat/internal/repository/mocks"
	"github.com/spinthechat/turn-chat/internal/service"
)

// recordingSink 是记录式的通知 Sink, 测试中用来断言出站通知
type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error // 非 nil 时模拟投递失败
}

func (r *recordingSink) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

// sentTo 返回发给指定用户的某类通知数量
func (r *recordingSink) sentTo(userID uint, kind notify.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.sent {
		if n.UserID == userID && n.Kind == kind {
			count++
		}
	}
	return count
}

// turnFixture 集中创建 TurnService 及其全部 Mock 依赖
type turnFixture struct {
	roomRepo    *mocks.RoomRepository
	memberRepo  *mocks.MemberRepository
	turnRepo    *mocks.TurnSessionRepository
	nudgeRepo   *mocks.NudgeRepository
	promptRepo  *mocks.PromptRepository
	messageRepo *mocks.MessageRepository
	sink        *recordingSink
	svc         *service.TurnService
}

func newTurnFixture(now time.Time) *turnFixture {
	f := &turnFixture{
		roomRepo:    new(mocks.RoomRepository),
		memberRepo:  new(mocks.MemberRepository),
		turnRepo:    new(mocks.TurnSessionRepository),
		nudgeRepo:   new(mocks.NudgeRepository),
		promptRepo:  new(mocks.PromptRepository),
		messageRepo: new(mocks.MessageRepository),
		sink:        &recordingSink{},
	}
	membership := service.NewMembershipService(f.memberRepo)
	bag := service.NewPromptBagService(f.promptRepo)
	engagement := service.NewEngagementService(f.memberRepo, f.messageRepo, f.sink)
	f.svc = service.NewTurnService(
		f.roomRepo, f.turnRepo, f.nudgeRepo, f.messageRepo,
		membership, bag, engagement, f.sink,
		service.WithClock(func() time.Time { return now }),
	)
	return f
}
