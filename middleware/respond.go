package middleware

import (
	"errors"
	"net/http"

	"RProject/logger"
	"RProject/tools/errs"

	"github.com/gin-gonic/gin"
)

// RespondError maps service errors onto HTTP statuses. Anything without a
// code is a 500 and gets logged with its stack.
func RespondError(c *gin.Context, err error) {
	var ce errs.CodeError
	if !errors.As(err, &ce) {
		logger.Errorf("unhandled error: %+v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code": errs.ServerInternalError,
			"msg":  errs.ErrInternalServer.Msg,
		})
		return
	}
	// detail carries internal identifiers (usernames, room ids); it stays
	// in the logs, never in the response body
	if ce.Detail != "" {
		logger.Infof("[http] %s %s -> %d: %s",
			c.Request.Method, c.Request.URL.Path, ce.Code, ce.Detail)
	}
	c.JSON(httpStatus(ce.Code), gin.H{"code": ce.Code, "msg": ce.Msg})
}

func httpStatus(code int) int {
	switch code {
	case errs.RecordNotFoundError:
		return http.StatusNotFound
	case errs.ForbiddenError:
		return http.StatusForbidden
	case errs.ConflictError:
		return http.StatusConflict
	case errs.ValidationError:
		return http.StatusBadRequest
	case errs.TokenInvalidError, errs.TokenExpiredError:
		return http.StatusUnauthorized
	case errs.DependencyError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
