package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/service"
)

// TurnHandler 封装了轮换会话相关的 HTTP 处理逻辑
type TurnHandler struct {
	turnService *service.TurnService
}

// NewTurnHandler 创建 TurnHandler 实例
func NewTurnHandler(turnService *service.TurnService) *TurnHandler {
	if turnService == nil {
		panic("TurnService cannot be nil for TurnHandler")
	}
	return &TurnHandler{turnService: turnService}
}

// currentUserID 从 Gin 上下文中取出 Auth 中间件写入的用户 ID
// 失败时已写入响应, 调用方直接 return 即可
func currentUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("Handler: User ID in context is not uint")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return 0, false
	}
	return userID, true
}

// roomIDParam 解析路径中的 roomId 参数
func roomIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("roomId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room ID")
		return 0, false
	}
	return uint(id), true
}

// StartSessionResponse 定义开始会话成功的响应结构体
type StartSessionResponse struct {
	Message      string `json:"message"`
	RoomID       uint   `json:"room_id"`
	HolderUserID uint   `json:"holder_user_id"`
	PromptText   string `json:"prompt_text"`
	PromptType   string `json:"prompt_type"`
}

// StartSession 处理房主开启轮换会话的请求
func (h *TurnHandler) StartSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	session, err := h.turnService.StartSession(c.Request.Context(), roomID, userID)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.StartSession: Failed to start session via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("holder_user_id", session.HolderUserID).Info("Handler.StartSession: Session started")
	SuccessResponse(c, http.StatusOK, StartSessionResponse{
		Message:      "Session started",
		RoomID:       session.RoomID,
		HolderUserID: session.HolderUserID,
		PromptText:   session.PromptText,
		PromptType:   session.PromptType,
	})
}

// SubmitTurnRequest 定义文字答题请求的结构体
type SubmitTurnRequest struct {
	Content string `json:"content" binding:"required"`
}

// TurnAdvancedResponse 定义回合推进后的通用响应结构体
type TurnAdvancedResponse struct {
	Message      string `json:"message"`
	RoomID       uint   `json:"room_id"`
	HolderUserID uint   `json:"holder_user_id"`
	PromptText   string `json:"prompt_text"`
	PromptType   string `json:"prompt_type"`
}

// SubmitTurn 处理当前持有者提交文字回答的请求
func (h *TurnHandler) SubmitTurn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	var req SubmitTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.SubmitTurn: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: content is required")
		return
	}

	next, err := h.turnService.SubmitTurn(c.Request.Context(), roomID, userID, req.Content)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.SubmitTurn: Failed to submit turn via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("next_holder", next.HolderUserID).Info("Handler.SubmitTurn: Turn completed")
	SuccessResponse(c, http.StatusOK, TurnAdvancedResponse{
		Message:      "Turn completed",
		RoomID:       next.RoomID,
		HolderUserID: next.HolderUserID,
		PromptText:   next.PromptText,
		PromptType:   next.PromptType,
	})
}

// SubmitPhotoTurnRequest 定义照片答题请求的结构体
type SubmitPhotoTurnRequest struct {
	PhotoRef string `json:"photo_ref" binding:"required"`
	Caption  string `json:"caption"`
}

// SubmitPhotoTurn 处理当前持有者提交照片回答的请求
func (h *TurnHandler) SubmitPhotoTurn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	var req SubmitPhotoTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.SubmitPhotoTurn: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: photo_ref is required")
		return
	}

	next, err := h.turnService.SubmitPhotoTurn(c.Request.Context(), roomID, userID, req.PhotoRef, req.Caption)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.SubmitPhotoTurn: Failed to submit photo turn via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("next_holder", next.HolderUserID).Info("Handler.SubmitPhotoTurn: Turn completed")
	SuccessResponse(c, http.StatusOK, TurnAdvancedResponse{
		Message:      "Turn completed",
		RoomID:       next.RoomID,
		HolderUserID: next.HolderUserID,
		PromptText:   next.PromptText,
		PromptType:   next.PromptType,
	})
}

// SendNudgeResponse 定义催促成功的响应结构体
type SendNudgeResponse struct {
	Message   string `json:"message"`
	AllNudged bool   `json:"all_nudged"`
}

// SendNudge 处理成员催促当前持有者的请求
func (h *TurnHandler) SendNudge(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	allNudged, err := h.turnService.SendNudge(c.Request.Context(), roomID, userID)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.SendNudge: Failed to send nudge via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("all_nudged", allNudged).Info("Handler.SendNudge: Nudge recorded")
	SuccessResponse(c, http.StatusOK, SendNudgeResponse{
		Message:   "Nudge sent",
		AllNudged: allNudged,
	})
}

// NudgeStatusResponse 定义催促状态查询的响应结构体
type NudgeStatusResponse struct {
	EligibleCount int  `json:"eligible_count"`
	NudgeCount    int  `json:"nudge_count"`
	AllNudged     bool `json:"all_nudged"`
	UserHasNudged bool `json:"user_has_nudged"`
	HolderUserID  uint `json:"holder_user_id"`
}

// GetNudgeStatus 处理查询当前回合催促状态的请求
func (h *TurnHandler) GetNudgeStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	status, err := h.turnService.GetNudgeStatus(c.Request.Context(), roomID, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).
			WithError(err).Warn("Handler.GetNudgeStatus: Failed to fetch nudge status")
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, NudgeStatusResponse{
		EligibleCount: status.EligibleCount,
		NudgeCount:    status.NudgeCount,
		AllNudged:     status.AllNudged,
		UserHasNudged: status.UserHasNudged,
		HolderUserID:  status.HolderUserID,
	})
}

// HostSkip 处理房主跳过当前持有者的请求
func (h *TurnHandler) HostSkip(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	next, err := h.turnService.HostSkip(c.Request.Context(), roomID, userID)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.HostSkip: Failed to skip turn via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithField("next_holder", next.HolderUserID).Info("Handler.HostSkip: Turn skipped by host")
	SuccessResponse(c, http.StatusOK, TurnAdvancedResponse{
		Message:      "Turn skipped",
		RoomID:       next.RoomID,
		HolderUserID: next.HolderUserID,
		PromptText:   next.PromptText,
		PromptType:   next.PromptType,
	})
}
