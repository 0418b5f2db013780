package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// MembershipService 提供房间成员的实时有序视图。
// 顺序每次都从当前成员数据派生 —— 这里绝不缓存, 也绝不持久化
// 一份固定顺序: 成员中途进出时, 下一次推进立即反映, 无需修复步骤。
type MembershipService struct {
	memberRepo repository.MemberRepository
}

// NewMembershipService 创建 MembershipService 实例
func NewMembershipService(memberRepo repository.MemberRepository) *MembershipService {
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for MembershipService")
	}
	return &MembershipService{memberRepo: memberRepo}
}

// OrderedMembers 返回按 (joined_at, user_id) 稳定排序的当前成员列表。
func (s *MembershipService) OrderedMembers(ctx context.Context, roomID uint) ([]domain.Member, error) {
	members, err := s.memberRepo.ListOrdered(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("MembershipService: failed to list members")
		return nil, ErrInternalServer
	}
	return members, nil
}

// NextMember 返回顺序中紧跟在 fromUserID 之后的成员。
// fromUserID 是最后一位或已不在房间时回绕到第一位;
// 在场成员不足 2 人时返回 (nil, nil), 表示没有可轮换的下一位。
func (s *MembershipService) NextMember(ctx context.Context, roomID, fromUserID uint) (*domain.Member, error) {
	members, err := s.OrderedMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) < 2 {
		return nil, nil
	}

	for i := range members {
		if members[i].UserID == fromUserID {
			next := members[(i+1)%len(members)]
			return &next, nil
		}
	}
	// fromUserID 已不在房间 (中途退出或被移除): 回绕到第一位
	first := members[0]
	return &first, nil
}

// IsMember 判断用户是否为房间成员, 返回成员记录。
func (s *MembershipService) IsMember(ctx context.Context, roomID, userID uint) (*domain.Member, error) {
	member, err := s.memberRepo.FindByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotAMember
		}
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("MembershipService: failed to look up member")
		return nil, ErrInternalServer
	}
	return member, nil
}
