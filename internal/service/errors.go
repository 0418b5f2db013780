package service

import "errors"

// 业务错误分类:
//   - 权限类: ErrPermissionDenied
//   - 前置条件类: 会话/回合/冷却/类型/成员数等校验失败, 同步返回,
//     并发输家 (ErrTurnConflict) 与普通前置条件失败同等对待
//   - 冲突类: ErrAlreadyNudged —— 并发下的正常结果, 不是用户错误
//   - 未找到类: ErrRoomNotFound
//   - 不变量违反: ErrNoPromptsAvailable —— 致命配置错误, 必须大声失败
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotAMember          = errors.New("caller is not a member of this room")
	ErrInsufficientMembers = errors.New("at least two members are required")
	ErrNoActiveSession     = errors.New("no active session in this room")
	ErrNotYourTurn         = errors.New("it is not your turn")
	ErrInCooldown          = errors.New("turn is still in cooldown")
	ErrWrongPromptType     = errors.New("submission type does not match the active prompt")
	ErrMissingPhoto        = errors.New("photo reference is required")
	ErrSelfNudge           = errors.New("you cannot nudge your own turn")
	ErrAlreadyNudged       = errors.New("already nudged this turn")
	ErrTurnConflict        = errors.New("turn changed concurrently, reload and retry")
	ErrNoPromptsAvailable  = errors.New("no prompts available for this mode")
	ErrInternalServer      = errors.New("internal server error")
)
