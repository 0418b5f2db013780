package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/service"
)

// HandleServiceError 将 Service 层业务错误映射为对应的 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrPermissionDenied) || errors.Is(err, service.ErrNotAMember) {
		ErrorResponse(c, http.StatusForbidden, err.Error())
	} else if errors.Is(err, service.ErrRoomNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
	} else if errors.Is(err, service.ErrNoActiveSession) ||
		errors.Is(err, service.ErrNotYourTurn) ||
		errors.Is(err, service.ErrInCooldown) ||
		errors.Is(err, service.ErrInsufficientMembers) ||
		errors.Is(err, service.ErrSelfNudge) ||
		errors.Is(err, service.ErrAlreadyNudged) ||
		errors.Is(err, service.ErrTurnConflict) {
		ErrorResponse(c, http.StatusConflict, err.Error())
	} else if errors.Is(err, service.ErrWrongPromptType) || errors.Is(err, service.ErrMissingPhoto) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	} else {
		// 记录未归类的内部错误便于排查
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
