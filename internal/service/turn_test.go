package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/notify"
	"github.com/spinthechat/turn-chat/internal/repository"
	"github.com/spinthechat/turn-chat/internal/service"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRoom() *domain.Room {
	return &domain.Room{ID: 1, Kind: domain.RoomKindGroup, PromptMode: "classic"}
}

func hostMember(userID uint) *domain.Member {
	return &domain.Member{ID: 1, RoomID: 1, UserID: userID, Role: domain.RoleHost}
}

func plainMember(userID uint) *domain.Member {
	return &domain.Member{ID: 2, RoomID: 1, UserID: userID, Role: domain.RoleMember}
}

func textPrompt(id uint) *domain.Prompt {
	return &domain.Prompt{ID: id, Text: "What made you smile today?", Type: domain.PromptTypeText, Mode: "classic"}
}

func activeTextSession(holderID uint) *domain.TurnSession {
	return &domain.TurnSession{
		ID:           1,
		RoomID:       1,
		InstanceID:   "inst-1",
		HolderUserID: holderID,
		PromptText:   "What made you smile today?",
		PromptType:   domain.PromptTypeText,
		Active:       true,
	}
}

// expectBagPick 设置一次完整的抽题预期
func expectBagPick(f *turnFixture, ctx context.Context, prompt *domain.Prompt) {
	f.promptRepo.On("CountByMode", ctx, "classic").Return(int64(50), nil).Once()
	f.promptRepo.On("CountUsed", ctx, uint(1), "classic").Return(int64(5), nil).Once()
	f.promptRepo.On("PickUnused", ctx, uint(1), "classic").Return(prompt, nil).Once()
	f.promptRepo.On("MarkUsed", ctx, uint(1), "classic", prompt.ID).Return(nil).Once()
}

// --- StartSession ---

func TestTurnService_StartSession_Success(t *testing.T) {
	// Arrange: 房主开局, 三名成员, 顺序第一位成为持有者
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(7))
	f.turnRepo.On("Start", ctx, mock.MatchedBy(func(s *domain.TurnSession) bool {
		return s.RoomID == 1 && s.HolderUserID == 10 && s.Active && s.InstanceID != ""
	})).Return(nil).Once()
	f.messageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Kind == domain.MessageKindSystem
	})).Return(nil).Once()

	// Act
	session, err := f.svc.StartSession(ctx, 1, 10)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, uint(10), session.HolderUserID)
	assert.Equal(t, domain.PromptTypeText, session.PromptType)
	assert.Equal(t, 1, f.sink.sentTo(10, notify.KindYourTurn))
	f.turnRepo.AssertExpectations(t)
}

func TestTurnService_StartSession_NotHost(t *testing.T) {
	// Arrange: 普通成员尝试开局
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(20)).Return(plainMember(20), nil).Once()

	// Act
	_, err := f.svc.StartSession(ctx, 1, 20)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrPermissionDenied))
	f.turnRepo.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestTurnService_StartSession_InsufficientMembers(t *testing.T) {
	// Arrange: 房间里只有房主一人
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10), nil).Once()

	// Act
	_, err := f.svc.StartSession(ctx, 1, 10)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInsufficientMembers))
}

// --- SubmitTurn ---

func TestTurnService_SubmitTurn_AdvancesToNextMember(t *testing.T) {
	// Arrange: 持有者 10 提交文字答案, 回合推进到 20
	f := newTurnFixture(testNow)
	ctx := context.Background()
	session := activeTextSession(10)

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(session, nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	// 答案持久化
	f.messageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Kind == domain.MessageKindAnswer && msg.AuthorID != nil && *msg.AuthorID == 10
	})).Return(nil).Once()
	// 推进: 清零计数 -> 查下一位 -> 抽新题 -> CAS 改写
	f.memberRepo.On("ResetStreak", ctx, uint(1), uint(10)).Return(nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.MatchedBy(func(s *domain.TurnSession) bool {
		return s.HolderUserID == 20 && s.Active && s.InstanceID != "inst-1" && s.AllNudgedAt == nil
	})).Return(nil).Once()

	// Act
	next, err := f.svc.SubmitTurn(ctx, 1, 10, "Sunshine after a week of rain")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, uint(20), next.HolderUserID)
	assert.NotEqual(t, "inst-1", next.InstanceID)
	assert.Equal(t, 1, f.sink.sentTo(20, notify.KindYourTurn))
	f.turnRepo.AssertExpectations(t)
	f.memberRepo.AssertExpectations(t)
}

func TestTurnService_SubmitTurn_NotYourTurn(t *testing.T) {
	// Arrange: 调用者 20 不是当前持有者
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()

	// Act
	_, err := f.svc.SubmitTurn(ctx, 1, 20, "not my turn though")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotYourTurn))
	f.messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestTurnService_SubmitTurn_InCooldown(t *testing.T) {
	// Arrange: 冷却期未过
	f := newTurnFixture(testNow)
	ctx := context.Background()
	session := activeTextSession(10)
	until := testNow.Add(30 * time.Minute)
	session.CooldownUntil = &until

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(session, nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()

	// Act
	_, err := f.svc.SubmitTurn(ctx, 1, 10, "too early")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInCooldown))
}

func TestTurnService_SubmitTurn_WrongPromptType(t *testing.T) {
	// Arrange: 当前是照片题, 却提交了文字答案
	f := newTurnFixture(testNow)
	ctx := context.Background()
	session := activeTextSession(10)
	session.PromptType = domain.PromptTypePhoto

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(session, nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()

	// Act
	_, err := f.svc.SubmitTurn(ctx, 1, 10, "words for a photo prompt")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrWrongPromptType))
}

func TestTurnService_SubmitTurn_LostRace(t *testing.T) {
	// Arrange: CAS 改写落空 (读取后会话已被并发推进)
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.messageRepo.On("Append", ctx, mock.Anything).Return(nil).Once()
	f.memberRepo.On("ResetStreak", ctx, uint(1), uint(10)).Return(nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.Anything).
		Return(repository.ErrStaleInstance).Once()

	// Act
	_, err := f.svc.SubmitTurn(ctx, 1, 10, "lost the race")

	// Assert: 并发输家拿到明确的冲突错误, 而不是静默双推进
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrTurnConflict))
}

func TestTurnService_SubmitTurn_SessionEndsWhenTooFewRemain(t *testing.T) {
	// Arrange: 提交后房间只剩持有者一人, 会话终结而不是自己轮给自己
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.messageRepo.On("Append", ctx, mock.Anything).Return(nil).Twice() // 答案 + 结束系统消息
	f.memberRepo.On("ResetStreak", ctx, uint(1), uint(10)).Return(nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10), nil).Once()
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.MatchedBy(func(s *domain.TurnSession) bool {
		return !s.Active
	})).Return(nil).Once()

	// Act
	ended, err := f.svc.SubmitTurn(ctx, 1, 10, "last one standing")

	// Assert
	require.NoError(t, err)
	assert.False(t, ended.Active)
	f.promptRepo.AssertNotCalled(t, "PickUnused", mock.Anything, mock.Anything, mock.Anything)
}

// --- SubmitPhotoTurn ---

func TestTurnService_SubmitPhotoTurn_Success(t *testing.T) {
	// Arrange: 照片题提交带媒体引用, payload 里保留题目快照
	f := newTurnFixture(testNow)
	ctx := context.Background()
	session := activeTextSession(10)
	session.PromptType = domain.PromptTypePhoto
	session.PromptText = "Share a photo of your view."

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(session, nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.messageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Kind == domain.MessageKindPhotoAnswer &&
			assert.Contains(t, msg.Payload, "Share a photo of your view.")
	})).Return(nil).Once()
	f.memberRepo.On("ResetStreak", ctx, uint(1), uint(10)).Return(nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.Anything).Return(nil).Once()

	// Act
	next, err := f.svc.SubmitPhotoTurn(ctx, 1, 10, "media/abc123.jpg", "golden hour")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(20), next.HolderUserID)
}

func TestTurnService_SubmitPhotoTurn_MissingPhoto(t *testing.T) {
	// Arrange
	f := newTurnFixture(testNow)
	ctx := context.Background()
	session := activeTextSession(10)
	session.PromptType = domain.PromptTypePhoto

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(session, nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()

	// Act
	_, err := f.svc.SubmitPhotoTurn(ctx, 1, 10, "", "no photo attached")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrMissingPhoto))
}

// --- SendNudge ---

func TestTurnService_SendNudge_LastNudgerArmsStallTimer(t *testing.T) {
	// Arrange: 两人房, 非持有者 20 提醒后即达到全员提醒
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(20)).Return(plainMember(20), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.nudgeRepo.On("Insert", ctx, mock.MatchedBy(func(n *domain.Nudge) bool {
		return n.RoomID == 1 && n.NudgerUserID == 20 && n.InstanceID == "inst-1" && n.NudgedUserID == 10
	})).Return(nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20), nil).Once()
	f.nudgeRepo.On("CountByInstance", ctx, uint(1), "inst-1", []uint{20}).Return(int64(1), nil).Once()
	f.turnRepo.On("StampAllNudged", ctx, uint(1), "inst-1", testNow).Return(true, nil).Once()

	// Act
	allNudged, err := f.svc.SendNudge(ctx, 1, 20)

	// Assert
	require.NoError(t, err)
	assert.True(t, allNudged)
	assert.Equal(t, 1, f.sink.sentTo(10, notify.KindNudgedYou))
	f.turnRepo.AssertExpectations(t)
}

func TestTurnService_SendNudge_Duplicate(t *testing.T) {
	// Arrange: 同一回合重复提醒, 唯一约束兜底
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(20)).Return(plainMember(20), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.nudgeRepo.On("Insert", ctx, mock.Anything).Return(repository.ErrDuplicateEntry).Once()

	// Act
	_, err := f.svc.SendNudge(ctx, 1, 20)

	// Assert: 幂等冲突有自己的错误类别, 不污染计数
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAlreadyNudged))
	f.turnRepo.AssertNotCalled(t, "StampAllNudged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTurnService_SendNudge_SelfNudge(t *testing.T) {
	// Arrange: 持有者提醒自己
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil)
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()

	// Act
	_, err := f.svc.SendNudge(ctx, 1, 10)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrSelfNudge))
	f.nudgeRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestTurnService_SendNudge_DepartedNudgerDoesNotArmStallTimer(t *testing.T) {
	// Arrange: 回合中途成员更替 —— 30 提醒后退房, 40 补位入房。
	// 当前在场成员 [10(持有者), 20, 40, 50], 本回合留有 20/30/50 三条
	// 提醒记录。40 从未提醒, 计数只认在场成员, 不能误判为全员已提醒。
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(50)).Return(plainMember(50), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.nudgeRepo.On("Insert", ctx, mock.Anything).Return(nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 40, 50), nil).Once()
	// 限定在场成员后的计数: 20 和 50 已提醒, 退房的 30 不算
	f.nudgeRepo.On("CountByInstance", ctx, uint(1), "inst-1", []uint{20, 40, 50}).Return(int64(2), nil).Once()

	// Act
	allNudged, err := f.svc.SendNudge(ctx, 1, 50)

	// Assert: 还差 40, 不能盖全员提醒时间戳
	require.NoError(t, err)
	assert.False(t, allNudged)
	f.turnRepo.AssertNotCalled(t, "StampAllNudged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- GetNudgeStatus ---

func TestTurnService_GetNudgeStatus(t *testing.T) {
	// Arrange: 三人房, 调用者 20 已提醒过, 共 1 条提醒
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(20)).Return(plainMember(20), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	f.nudgeRepo.On("CountByInstance", ctx, uint(1), "inst-1", []uint{20, 30}).Return(int64(1), nil).Once()
	f.nudgeRepo.On("HasNudged", ctx, uint(1), uint(20), "inst-1").Return(true, nil).Once()

	// Act
	status, err := f.svc.GetNudgeStatus(ctx, 1, 20)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, status.EligibleCount)
	assert.Equal(t, 1, status.NudgeCount)
	assert.False(t, status.AllNudged)
	assert.True(t, status.UserHasNudged)
	assert.Equal(t, uint(10), status.HolderUserID)
}

// --- HostSkip ---

func TestTurnService_HostSkip_AdvancesAndPenalizes(t *testing.T) {
	// Arrange: 房主 10 跳过持有者 20, 回合推进到 30
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).Return(hostMember(10), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(20), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(20)).Return(plainMember(20), nil).Once()
	// 惩罚: 被跳过者计数加一
	f.memberRepo.On("IncrementStreak", ctx, uint(1), uint(20)).Return(1, nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.MatchedBy(func(s *domain.TurnSession) bool {
		return s.HolderUserID == 30 && s.Active
	})).Return(nil).Once()

	// Act
	next, err := f.svc.HostSkip(ctx, 1, 10)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(30), next.HolderUserID)
	assert.Equal(t, 1, f.sink.sentTo(20, notify.KindTurnSkipped))
	assert.Equal(t, 1, f.sink.sentTo(30, notify.KindYourTurn))
	f.memberRepo.AssertExpectations(t)
}

func TestTurnService_HostSkip_NotHost(t *testing.T) {
	// Arrange
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(20)).Return(plainMember(20), nil).Once()

	// Act
	_, err := f.svc.HostSkip(ctx, 1, 20)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrPermissionDenied))
}

// --- 持有者退出后的自愈 ---

func TestTurnService_SubmitTurn_HealsWhenHolderLeft(t *testing.T) {
	// Arrange: 会话持有者 10 已退出房间, 成员 20 发起提交。
	// 先做一次无惩罚推进 (回绕到 20), 随后 20 的提交正常生效。
	f := newTurnFixture(testNow)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(10), nil).Once()
	// 持有者 10 已经不是成员
	f.memberRepo.On("FindByRoomAndUser", ctx, uint(1), uint(10)).
		Return(nil, repository.ErrMemberNotFound).Once()
	// 自愈推进和正常推进各查一次成员列表
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(20, 30), nil).Twice()
	// 两次推进各抽一题
	f.promptRepo.On("CountByMode", ctx, "classic").Return(int64(50), nil).Twice()
	f.promptRepo.On("CountUsed", ctx, uint(1), "classic").Return(int64(5), nil).Twice()
	f.promptRepo.On("PickUnused", ctx, uint(1), "classic").Return(textPrompt(8), nil).Twice()
	f.promptRepo.On("MarkUsed", ctx, uint(1), "classic", uint(8)).Return(nil).Twice()
	f.turnRepo.On("CompareAndRewrite", ctx, mock.Anything, mock.Anything).Return(nil).Twice()
	// 20 的答案持久化 + 完成清零
	f.messageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Kind == domain.MessageKindAnswer
	})).Return(nil).Once()
	f.memberRepo.On("ResetStreak", ctx, uint(1), uint(20)).Return(nil).Once()

	// Act
	next, err := f.svc.SubmitTurn(ctx, 1, 20, "healed and answered")

	// Assert: 自愈不惩罚任何人, 最终回合落在 30
	require.NoError(t, err)
	assert.Equal(t, uint(30), next.HolderUserID)
	f.memberRepo.AssertNotCalled(t, "IncrementStreak", mock.Anything, mock.Anything, mock.Anything)
}

// --- StallSweep ---

func stalledSession(holderID uint, stalledFor time.Duration) *domain.TurnSession {
	s := activeTextSession(holderID)
	at := testNow.Add(-stalledFor)
	s.AllNudgedAt = &at
	return s
}

func TestTurnService_StallSweep_ForceAdvancesStalledTurn(t *testing.T) {
	// Arrange: 全员提醒已超过停滞窗口, 自动跳过持有者 20
	f := newTurnFixture(testNow)
	ctx := context.Background()
	threshold := testNow.Add(-domain.StallWindow)
	candidate := stalledSession(20, domain.StallWindow+time.Hour)

	f.turnRepo.On("ListStalled", ctx, threshold).Return([]domain.TurnSession{*candidate}, nil).Once()
	// 动手前重新读取
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(candidate, nil).Once()
	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("IncrementStreak", ctx, uint(1), uint(20)).Return(1, nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.MatchedBy(func(s *domain.TurnSession) bool {
		return s.HolderUserID == 30 && s.AllNudgedAt == nil
	})).Return(nil).Once()

	// Act
	swept, err := f.svc.StallSweep(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 1, f.sink.sentTo(20, notify.KindTurnSkipped))
	f.turnRepo.AssertExpectations(t)
}

func TestTurnService_StallSweep_SkipsFreshlyAdvancedSession(t *testing.T) {
	// Arrange: 扫描候选在重新读取时已被推进 (all_nudged_at 已清空)
	f := newTurnFixture(testNow)
	ctx := context.Background()
	threshold := testNow.Add(-domain.StallWindow)
	candidate := stalledSession(20, domain.StallWindow+time.Hour)

	f.turnRepo.On("ListStalled", ctx, threshold).Return([]domain.TurnSession{*candidate}, nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(activeTextSession(30), nil).Once()

	// Act
	swept, err := f.svc.StallSweep(ctx)

	// Assert: no-op, 不惩罚任何人
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	f.memberRepo.AssertNotCalled(t, "IncrementStreak", mock.Anything, mock.Anything, mock.Anything)
}

func TestTurnService_StallSweep_LosesRaceGracefully(t *testing.T) {
	// Arrange: 推进时 CAS 输给了用户操作, 按 no-op 处理
	f := newTurnFixture(testNow)
	ctx := context.Background()
	threshold := testNow.Add(-domain.StallWindow)
	candidate := stalledSession(20, domain.StallWindow+time.Hour)

	f.turnRepo.On("ListStalled", ctx, threshold).Return([]domain.TurnSession{*candidate}, nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(candidate, nil).Once()
	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("IncrementStreak", ctx, uint(1), uint(20)).Return(1, nil).Once()
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 20, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.Anything).
		Return(repository.ErrStaleInstance).Once()

	// Act
	swept, err := f.svc.StallSweep(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestTurnService_StallSweep_ThirdStrikeRemovesMember(t *testing.T) {
	// Arrange: 第三次自动跳过, 持有者 20 被移出房间, 下一位从剩余成员里选
	f := newTurnFixture(testNow)
	ctx := context.Background()
	threshold := testNow.Add(-domain.StallWindow)
	candidate := stalledSession(20, domain.StallWindow+time.Hour)

	f.turnRepo.On("ListStalled", ctx, threshold).Return([]domain.TurnSession{*candidate}, nil).Once()
	f.turnRepo.On("FindActiveByRoom", ctx, uint(1)).Return(candidate, nil).Once()
	f.roomRepo.On("FindByID", ctx, uint(1)).Return(testRoom(), nil).Once()
	f.memberRepo.On("IncrementStreak", ctx, uint(1), uint(20)).
		Return(domain.MissedStreakRemovalThreshold, nil).Once()
	f.memberRepo.On("Remove", ctx, uint(1), uint(20)).Return(nil).Once()
	// 移除的系统消息
	f.messageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Kind == domain.MessageKindSystem
	})).Return(nil).Once()
	// 移除先于下一位查询: 成员列表里已经没有 20
	f.memberRepo.On("ListOrdered", ctx, uint(1)).Return(orderedMembers(10, 30), nil).Once()
	expectBagPick(f, ctx, textPrompt(8))
	f.turnRepo.On("CompareAndRewrite", ctx, "inst-1", mock.MatchedBy(func(s *domain.TurnSession) bool {
		// 20 已不在列表, 回绕到第一位
		return s.HolderUserID == 10 && s.Active
	})).Return(nil).Once()

	// Act
	swept, err := f.svc.StallSweep(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	f.memberRepo.AssertExpectations(t)
}
