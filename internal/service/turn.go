package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/notify"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// reasonHolderLeft 仅内部使用: 持有者已退出房间, 无惩罚推进 (自愈)。
const reasonHolderLeft = "holder_left"

// TurnService 是回合轮换的协调器, 编排成员视图/洗牌袋/参与度策略,
// 对外暴露 StartSession / SubmitTurn / SubmitPhotoTurn / SendNudge /
// GetNudgeStatus / HostSkip / StallSweep。
//
// 并发模型: 无状态请求处理, 每次操作都重新读取会话行, 改写都以
// 回合令牌为前提 (乐观 CAS)。两个并发提交只有一个成功, 输家拿到
// ErrTurnConflict, 与普通前置条件失败同等对待 (重新加载后重试)。
type TurnService struct {
	roomRepo    repository.RoomRepository
	turnRepo    repository.TurnSessionRepository
	nudgeRepo   repository.NudgeRepository
	messageRepo repository.MessageRepository
	membership  *MembershipService
	bag         *PromptBagService
	engagement  *EngagementService
	sink        notify.Sink
	now         func() time.Time
}

// TurnOption 配置 TurnService 的可选项
type TurnOption func(*TurnService)

// WithClock 替换时间源 (测试用)
func WithClock(now func() time.Time) TurnOption {
	return func(s *TurnService) { s.now = now }
}

// NewTurnService 创建 TurnService 实例
func NewTurnService(
	roomRepo repository.RoomRepository,
	turnRepo repository.TurnSessionRepository,
	nudgeRepo repository.NudgeRepository,
	messageRepo repository.MessageRepository,
	membership *MembershipService,
	bag *PromptBagService,
	engagement *EngagementService,
	sink notify.Sink,
	opts ...TurnOption,
) *TurnService {
	if roomRepo == nil || turnRepo == nil || nudgeRepo == nil || messageRepo == nil {
		panic("repositories cannot be nil for TurnService")
	}
	if membership == nil || bag == nil || engagement == nil {
		panic("component services cannot be nil for TurnService")
	}
	if sink == nil {
		panic("Sink cannot be nil for TurnService")
	}
	s := &TurnService{
		roomRepo:    roomRepo,
		turnRepo:    turnRepo,
		nudgeRepo:   nudgeRepo,
		messageRepo: messageRepo,
		membership:  membership,
		bag:         bag,
		engagement:  engagement,
		sink:        sink,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NudgeStatus 是 GetNudgeStatus 的返回结构
type NudgeStatus struct {
	EligibleCount int  `json:"eligible_count"`
	NudgeCount    int  `json:"nudge_count"`
	AllNudged     bool `json:"all_nudged"`
	UserHasNudged bool `json:"user_has_nudged"`
	HolderUserID  uint `json:"holder_user_id"`
}

// StartSession 由房主开始一局游戏。
// 要求调用者是房主且房间至少有 2 名在场成员; 已有的旧会话被覆盖停用。
// 持有者是顺序中的第一位成员, 题目来自洗牌袋, 首回合无冷却。
func (s *TurnService) StartSession(ctx context.Context, roomID, callerID uint) (*domain.TurnSession, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "caller_id": callerID})

	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	caller, err := s.membership.IsMember(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsHost() {
		return nil, ErrPermissionDenied
	}

	members, err := s.membership.OrderedMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) < 2 {
		return nil, ErrInsufficientMembers
	}

	prompt, err := s.bag.Next(ctx, roomID, room.PromptMode)
	if err != nil {
		return nil, err
	}

	session := &domain.TurnSession{
		RoomID:       roomID,
		InstanceID:   uuid.NewString(),
		HolderUserID: members[0].UserID,
		PromptText:   prompt.Text,
		PromptType:   prompt.Type,
		Active:       true,
	}
	if err := s.turnRepo.Start(ctx, session); err != nil {
		logCtx.WithError(err).Error("TurnService: failed to start session")
		return nil, ErrInternalServer
	}
	logCtx.WithFields(logrus.Fields{"holder_id": session.HolderUserID, "instance_id": session.InstanceID}).
		Info("TurnService: session started")

	s.appendSystemMessage(ctx, roomID, "The game has started!", map[string]string{"event": "game_started"})
	s.notifyUser(ctx, session.HolderUserID, roomID, notify.KindYourTurn, map[string]string{
		"prompt":      prompt.Text,
		"prompt_type": prompt.Type,
	})
	return session, nil
}

// SubmitTurn 提交文字答案。
// 前置条件: 有激活会话, 调用者是持有者, 不在冷却中, 当前题目是文字题。
// 答案先经 MessageStore 持久化, 然后以 completed 原因推进。
func (s *TurnService) SubmitTurn(ctx context.Context, roomID, callerID uint, content string) (*domain.TurnSession, error) {
	room, session, err := s.loadForSubmit(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if session.PromptType != domain.PromptTypeText {
		return nil, ErrWrongPromptType
	}

	if err := s.appendAnswer(ctx, roomID, callerID, domain.MessageKindAnswer, answerPayload{
		Prompt: session.PromptText,
		Text:   content,
	}); err != nil {
		return nil, err
	}
	return s.advance(ctx, room, session, ReasonCompleted, nil)
}

// SubmitPhotoTurn 提交照片答案。
// 额外要求当前题目是照片题且带有媒体引用; 持久化的 payload 带上
// 题目快照, 让原始题目在答案旁边一直可见。
func (s *TurnService) SubmitPhotoTurn(ctx context.Context, roomID, callerID uint, photoRef, caption string) (*domain.TurnSession, error) {
	room, session, err := s.loadForSubmit(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if session.PromptType != domain.PromptTypePhoto {
		return nil, ErrWrongPromptType
	}
	if photoRef == "" {
		return nil, ErrMissingPhoto
	}

	if err := s.appendAnswer(ctx, roomID, callerID, domain.MessageKindPhotoAnswer, photoAnswerPayload{
		Prompt:   session.PromptText,
		PhotoRef: photoRef,
		Caption:  caption,
	}); err != nil {
		return nil, err
	}
	return s.advance(ctx, room, session, ReasonCompleted, nil)
}

// SendNudge 提醒当前持有者答题。
// 幂等性按 (房间, 调用者, 回合令牌) 由数据库唯一约束保证;
// 重复提醒返回 ErrAlreadyNudged —— 并发下的正常结果。
// 成功后重新计算是否全员已提醒, 是则首写生效地盖时间戳。
// 返回值表示本次提醒后是否已达到全员提醒状态。
func (s *TurnService) SendNudge(ctx context.Context, roomID, callerID uint) (bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "caller_id": callerID})

	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if _, err := s.membership.IsMember(ctx, roomID, callerID); err != nil {
		return false, err
	}
	session, err := s.activeSession(ctx, roomID)
	if err != nil {
		return false, err
	}
	session, err = s.ensureLiveHolder(ctx, room, session)
	if err != nil {
		return false, err
	}
	if callerID == session.HolderUserID {
		return false, ErrSelfNudge
	}

	nudge := &domain.Nudge{
		RoomID:       roomID,
		NudgerUserID: callerID,
		InstanceID:   session.InstanceID,
		NudgedUserID: session.HolderUserID,
	}
	if err := s.nudgeRepo.Insert(ctx, nudge); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return false, ErrAlreadyNudged
		}
		logCtx.WithError(err).Error("TurnService: failed to insert nudge")
		return false, ErrInternalServer
	}

	// 重新计算全员提醒状态 (合格成员 = 除持有者外的全部在场成员)。
	// 计数限定在当前在场成员内: 已退房成员留下的提醒记录不算,
	// 否则成员更替后可能在有人从未提醒的情况下误盖时间戳。
	members, err := s.membership.OrderedMembers(ctx, roomID)
	if err != nil {
		return false, err
	}
	eligibleIDs := eligibleNudgers(members, session.HolderUserID)
	count, err := s.nudgeRepo.CountByInstance(ctx, roomID, session.InstanceID, eligibleIDs)
	if err != nil {
		logCtx.WithError(err).Error("TurnService: failed to count nudges")
		return false, ErrInternalServer
	}
	allNudged := len(eligibleIDs) > 0 && count >= int64(len(eligibleIDs))
	if allNudged {
		stamped, err := s.turnRepo.StampAllNudged(ctx, roomID, session.InstanceID, s.now())
		if err != nil {
			logCtx.WithError(err).Error("TurnService: failed to stamp all-nudged")
			return false, ErrInternalServer
		}
		if stamped {
			// 之后的重复计算以及已推进的回合都不会再命中
			logCtx.WithField("instance_id", session.InstanceID).Info("TurnService: all eligible members have nudged, stall timer armed")
		}
	}

	s.notifyUser(ctx, session.HolderUserID, roomID, notify.KindNudgedYou, map[string]string{
		"nudger_id": fmt.Sprintf("%d", callerID),
	})
	return allNudged, nil
}

// GetNudgeStatus 返回当前回合的提醒进度。
func (s *TurnService) GetNudgeStatus(ctx context.Context, roomID, callerID uint) (*NudgeStatus, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.membership.IsMember(ctx, roomID, callerID); err != nil {
		return nil, err
	}
	session, err := s.activeSession(ctx, roomID)
	if err != nil {
		return nil, err
	}
	// 读取路径同样自愈: 持有者已退出时先无惩罚推进
	session, err = s.ensureLiveHolder(ctx, room, session)
	if err != nil {
		return nil, err
	}

	members, err := s.membership.OrderedMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	eligibleIDs := eligibleNudgers(members, session.HolderUserID)
	count, err := s.nudgeRepo.CountByInstance(ctx, roomID, session.InstanceID, eligibleIDs)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("TurnService: failed to count nudges")
		return nil, ErrInternalServer
	}
	hasNudged, err := s.nudgeRepo.HasNudged(ctx, roomID, callerID, session.InstanceID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("TurnService: failed to check nudge")
		return nil, ErrInternalServer
	}

	return &NudgeStatus{
		EligibleCount: len(eligibleIDs),
		NudgeCount:    int(count),
		AllNudged:     session.AllNudgedAt != nil,
		UserHasNudged: hasNudged,
		HolderUserID:  session.HolderUserID,
	}, nil
}

// HostSkip 由房主强制跳过当前持有者的回合。
func (s *TurnService) HostSkip(ctx context.Context, roomID, callerID uint) (*domain.TurnSession, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	caller, err := s.membership.IsMember(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsHost() {
		return nil, ErrPermissionDenied
	}
	session, err := s.activeSession(ctx, roomID)
	if err != nil {
		return nil, err
	}
	session, err = s.ensureLiveHolder(ctx, room, session)
	if err != nil {
		return nil, err
	}

	holder := session.HolderUserID
	return s.advance(ctx, room, session, ReasonHostSkip, &holder)
}

// StallSweep 扫描所有停滞会话并强制推进。
// 对冗余/并发调用安全: 动手前重新读取会话, 已被推进的会话
// (all_nudged_at 已清空) 自然落空; CAS 输掉也按 no-op 处理。
// 返回本次实际推进的会话数。
func (s *TurnService) StallSweep(ctx context.Context) (int, error) {
	threshold := s.now().Add(-domain.StallWindow)

	candidates, err := s.turnRepo.ListStalled(ctx, threshold)
	if err != nil {
		logrus.WithError(err).Error("TurnService: failed to list stalled sessions")
		return 0, ErrInternalServer
	}

	swept := 0
	for _, candidate := range candidates {
		logCtx := logrus.WithField("room_id", candidate.RoomID)

		// 执行时重新读取, 不信任扫描时捕获的值
		session, err := s.turnRepo.FindActiveByRoom(ctx, candidate.RoomID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				logCtx.WithError(err).Error("StallSweep: failed to re-read session")
			}
			continue
		}
		if !session.StalledSince(threshold) {
			// 期间已有人答题或回合已推进
			continue
		}
		room, err := s.findRoom(ctx, candidate.RoomID)
		if err != nil {
			logCtx.WithError(err).Warn("StallSweep: failed to load room, skipping")
			continue
		}

		holder := session.HolderUserID
		if _, err := s.advance(ctx, room, session, ReasonAutoSkip, &holder); err != nil {
			if errors.Is(err, ErrTurnConflict) {
				// 与用户操作赛跑输了: 会话已被推进, 无事可做
				logCtx.Debug("StallSweep: lost race with a user action")
				continue
			}
			logCtx.WithError(err).Error("StallSweep: failed to advance stalled session")
			continue
		}
		logCtx.WithField("skipped_user_id", holder).Info("StallSweep: stalled session force-advanced")
		swept++
	}
	return swept, nil
}

// --- 内部编排 ---

// advance 推进回合: 先应用参与度策略 (含可能的移除, 移除先于
// 下一位查询), 再向实时成员视图要下一位持有者, 抽新题, 以旧回合
// 令牌为前提整体改写会话行。没有下一位时会话结束。
func (s *TurnService) advance(ctx context.Context, room *domain.Room, session *domain.TurnSession, reason string, skippedUserID *uint) (*domain.TurnSession, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "reason": reason})
	now := s.now()
	prevHolder := session.HolderUserID

	switch {
	case reason == ReasonCompleted:
		if err := s.engagement.OnCompleted(ctx, room.ID, prevHolder); err != nil {
			return nil, err
		}
	case (reason == ReasonAutoSkip || reason == ReasonHostSkip) && skippedUserID != nil:
		if _, err := s.engagement.OnSkipped(ctx, room.ID, *skippedUserID, reason); err != nil {
			return nil, err
		}
	}

	from := prevHolder
	if skippedUserID != nil {
		from = *skippedUserID
	}
	next, err := s.membership.NextMember(ctx, room.ID, from)
	if err != nil {
		return nil, err
	}

	updated := *session
	updated.AllNudgedAt = nil
	updated.LastCompletedAt = &now

	if next == nil {
		// 剩余成员不足 2 人: 会话终结
		updated.Active = false
		if err := s.turnRepo.CompareAndRewrite(ctx, session.InstanceID, &updated); err != nil {
			return nil, s.mapRewriteError(logCtx, err)
		}
		logCtx.Info("TurnService: session ended, not enough members remain")
		s.appendSystemMessage(ctx, room.ID, "The game has ended: not enough members remain.", map[string]string{"event": "game_over"})
		return &updated, nil
	}

	prompt, err := s.bag.Next(ctx, room.ID, room.PromptMode)
	if err != nil {
		return nil, err
	}

	updated.HolderUserID = next.UserID
	updated.InstanceID = uuid.NewString()
	updated.PromptText = prompt.Text
	updated.PromptType = prompt.Type
	updated.CooldownUntil = nil
	if room.CooldownMinutes > 0 {
		if !domain.IsAllowedCooldown(room.CooldownMinutes) {
			logCtx.WithField("cooldown_minutes", room.CooldownMinutes).Warn("TurnService: room has unsupported cooldown, treating as none")
		} else {
			until := now.Add(room.CooldownDuration())
			updated.CooldownUntil = &until
		}
	}
	updated.Active = true

	if err := s.turnRepo.CompareAndRewrite(ctx, session.InstanceID, &updated); err != nil {
		return nil, s.mapRewriteError(logCtx, err)
	}
	logCtx.WithFields(logrus.Fields{
		"holder_id":   updated.HolderUserID,
		"instance_id": updated.InstanceID,
	}).Info("TurnService: turn advanced")

	// 绝不自我通知: 只剩一个可轮换成员时下一位可能瞬时等于上一位
	if next.UserID != prevHolder {
		s.notifyUser(ctx, next.UserID, room.ID, notify.KindYourTurn, map[string]string{
			"prompt":      prompt.Text,
			"prompt_type": prompt.Type,
		})
	}
	return &updated, nil
}

// loadForSubmit 加载并校验提交类操作共同的前置条件
func (s *TurnService) loadForSubmit(ctx context.Context, roomID, callerID uint) (*domain.Room, *domain.TurnSession, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.activeSession(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	session, err = s.ensureLiveHolder(ctx, room, session)
	if err != nil {
		return nil, nil, err
	}
	if callerID != session.HolderUserID {
		return nil, nil, ErrNotYourTurn
	}
	if session.InCooldown(s.now()) {
		return nil, nil, ErrInCooldown
	}
	return room, session, nil
}

// ensureLiveHolder 保证会话持有者仍是在场成员 (不变量自愈)。
// 持有者已退出时做一次无惩罚推进; 被并发操作抢先时重新读取即可。
func (s *TurnService) ensureLiveHolder(ctx context.Context, room *domain.Room, session *domain.TurnSession) (*domain.TurnSession, error) {
	_, err := s.membership.IsMember(ctx, room.ID, session.HolderUserID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrNotAMember) {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"room_id": room.ID, "holder_id": session.HolderUserID}).
		Warn("TurnService: holder is no longer a member, self-healing")
	healed, err := s.advance(ctx, room, session, reasonHolderLeft, nil)
	if err != nil {
		if errors.Is(err, ErrTurnConflict) {
			// 其他请求已经替我们推进了
			return s.activeSession(ctx, room.ID)
		}
		return nil, err
	}
	if !healed.Active {
		return nil, ErrNoActiveSession
	}
	return healed, nil
}

func (s *TurnService) findRoom(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("TurnService: failed to load room")
		return nil, ErrInternalServer
	}
	return room, nil
}

func (s *TurnService) activeSession(ctx context.Context, roomID uint) (*domain.TurnSession, error) {
	session, err := s.turnRepo.FindActiveByRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("TurnService: failed to load session")
		return nil, ErrInternalServer
	}
	return session, nil
}

// eligibleNudgers 返回可提醒当前持有者的成员 ID 列表 (持有者本人除外)。
func eligibleNudgers(members []domain.Member, holderUserID uint) []uint {
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		if m.UserID == holderUserID {
			continue
		}
		ids = append(ids, m.UserID)
	}
	return ids
}

func (s *TurnService) mapRewriteError(logCtx *logrus.Entry, err error) error {
	if errors.Is(err, repository.ErrStaleInstance) {
		logCtx.Debug("TurnService: lost compare-and-swap on session row")
		return ErrTurnConflict
	}
	logCtx.WithError(err).Error("TurnService: failed to rewrite session")
	return ErrInternalServer
}

// --- 消息与通知 (尽力而为的副作用) ---

type answerPayload struct {
	Prompt string `json:"prompt"`
	Text   string `json:"text"`
}

type photoAnswerPayload struct {
	Prompt   string `json:"prompt"`
	PhotoRef string `json:"photo_ref"`
	Caption  string `json:"caption,omitempty"`
}

// appendAnswer 持久化答案。注意答案不是尽力而为:
// 用户的内容丢了就是真失败, 持久化不成功则不推进。
func (s *TurnService) appendAnswer(ctx context.Context, roomID, authorID uint, kind string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("TurnService: failed to marshal answer payload")
		return ErrInternalServer
	}
	msg := &domain.Message{RoomID: roomID, AuthorID: &authorID, Kind: kind, Payload: string(raw)}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("TurnService: failed to persist answer")
		return ErrInternalServer
	}
	return nil
}

func (s *TurnService) appendSystemMessage(ctx context.Context, roomID uint, text string, extra map[string]string) {
	payload := map[string]string{"text": text}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("TurnService: failed to marshal system message")
		return
	}
	msg := &domain.Message{RoomID: roomID, AuthorID: nil, Kind: domain.MessageKindSystem, Payload: string(raw)}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("TurnService: failed to append system message")
	}
}

func (s *TurnService) notifyUser(ctx context.Context, userID, roomID uint, kind notify.Kind, metadata map[string]string) {
	err := s.sink.Notify(ctx, notify.Notification{
		UserID:   userID,
		RoomID:   roomID,
		Kind:     kind,
		Metadata: metadata,
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "room_id": roomID, "kind": kind}).
			Warn("TurnService: failed to enqueue notification")
	}
}
