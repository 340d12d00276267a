package controller

import (
	"edulearn_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError 业务哨兵错误到HTTP状态码的统一映射
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrQuizNotPublished),
		errors.Is(err, util.ErrQuizNotAvailable),
		errors.Is(err, util.ErrResultNotAvailable):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrAttemptLimitExceeded),
		errors.Is(err, util.ErrQuizLocked),
		errors.Is(err, util.ErrAttemptNotInProgress):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrAttemptExpiredUnsaved):
		util.Error(ctx, http.StatusGone, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
