// Package mocks 提供存储库接口的 testify Mock 实现 (测试用)。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 Mock 实现
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

// MemberRepository 是 repository.MemberRepository 的 Mock 实现
type MemberRepository struct {
	mock.Mock
}

func (m *MemberRepository) ListOrdered(ctx context.Context, roomID uint) ([]domain.Member, error) {
	args := m.Called(ctx, roomID)
	var members []domain.Member
	if args.Get(0) != nil {
		members = args.Get(0).([]domain.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepository) FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*domain.Member, error) {
	args := m.Called(ctx, roomID, userID)
	var member *domain.Member
	if args.Get(0) != nil {
		member = args.Get(0).(*domain.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepository) Remove(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MemberRepository) ResetStreak(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MemberRepository) IncrementStreak(ctx context.Context, roomID, userID uint) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

// TurnSessionRepository 是 repository.TurnSessionRepository 的 Mock 实现
type TurnSessionRepository struct {
	mock.Mock
}

func (m *TurnSessionRepository) FindActiveByRoom(ctx context.Context, roomID uint) (*domain.TurnSession, error) {
	args := m.Called(ctx, roomID)
	var session *domain.TurnSession
	if args.Get(0) != nil {
		session = args.Get(0).(*domain.TurnSession)
	}
	return session, args.Error(1)
}

func (m *TurnSessionRepository) Start(ctx context.Context, session *domain.TurnSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *TurnSessionRepository) CompareAndRewrite(ctx context.Context, expectedInstanceID string, updated *domain.TurnSession) error {
	args := m.Called(ctx, expectedInstanceID, updated)
	return args.Error(0)
}

func (m *TurnSessionRepository) StampAllNudged(ctx context.Context, roomID uint, instanceID string, at time.Time) (bool, error) {
	args := m.Called(ctx, roomID, instanceID, at)
	return args.Bool(0), args.Error(1)
}

func (m *TurnSessionRepository) ListStalled(ctx context.Context, threshold time.Time) ([]domain.TurnSession, error) {
	args := m.Called(ctx, threshold)
	var sessions []domain.TurnSession
	if args.Get(0) != nil {
		sessions = args.Get(0).([]domain.TurnSession)
	}
	return sessions, args.Error(1)
}

// NudgeRepository 是 repository.NudgeRepository 的 Mock 实现
type NudgeRepository struct {
	mock.Mock
}

func (m *NudgeRepository) Insert(ctx context.Context, nudge *domain.Nudge) error {
	args := m.Called(ctx, nudge)
	return args.Error(0)
}

func (m *NudgeRepository) CountByInstance(ctx context.Context, roomID uint, instanceID string, nudgerIDs []uint) (int64, error) {
	args := m.Called(ctx, roomID, instanceID, nudgerIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NudgeRepository) HasNudged(ctx context.Context, roomID, userID uint, instanceID string) (bool, error) {
	args := m.Called(ctx, roomID, userID, instanceID)
	return args.Bool(0), args.Error(1)
}

// PromptRepository 是 repository.PromptRepository 的 Mock 实现
type PromptRepository struct {
	mock.Mock
}

func (m *PromptRepository) CountByMode(ctx context.Context, mode string) (int64, error) {
	args := m.Called(ctx, mode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PromptRepository) CountUsed(ctx context.Context, roomID uint, mode string) (int64, error) {
	args := m.Called(ctx, roomID, mode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PromptRepository) PickUnused(ctx context.Context, roomID uint, mode string) (*domain.Prompt, error) {
	args := m.Called(ctx, roomID, mode)
	var prompt *domain.Prompt
	if args.Get(0) != nil {
		prompt = args.Get(0).(*domain.Prompt)
	}
	return prompt, args.Error(1)
}

func (m *PromptRepository) MarkUsed(ctx context.Context, roomID uint, mode string, promptID uint) error {
	args := m.Called(ctx, roomID, mode, promptID)
	return args.Error(0)
}

func (m *PromptRepository) ClearUsed(ctx context.Context, roomID uint, mode string) error {
	args := m.Called(ctx, roomID, mode)
	return args.Error(0)
}

// MessageRepository 是 repository.MessageRepository 的 Mock 实现
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Append(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
