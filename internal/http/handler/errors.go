package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/gnaperror"
	grantsvc "github.com/smallbiznis/gnap-auth/internal/service/grant"
)

func errorBody(e *gnaperror.Error) gin.H {
	return gin.H{"error": gin.H{"code": string(e.Code), "description": e.Description}}
}

func writeError(c *gin.Context, err error) {
	var gerr *grantsvc.Error
	if errors.As(err, &gerr) {
		e := mapGrantError(gerr)
		c.AbortWithStatusJSON(e.Status, errorBody(e))
		return
	}
	var perr *gnaperror.Error
	if errors.As(err, &perr) {
		c.AbortWithStatusJSON(perr.Status, errorBody(perr))
		return
	}

	zap.L().Error("request failed", zap.Error(err))
	e := gnaperror.NewWithStatus(gnaperror.CodeRequestDenied, http.StatusInternalServerError, "internal error")
	c.AbortWithStatusJSON(e.Status, errorBody(e))
}

// mapGrantError translates the grant error taxonomy into the protocol one.
// Every kind must map to exactly one code; keep this switch exhaustive.
func mapGrantError(e *grantsvc.Error) *gnaperror.Error {
	switch e.Kind {
	case grantsvc.ErrorInvalidRequest:
		return gnaperror.New(gnaperror.CodeInvalidRequest, e.Description)
	case grantsvc.ErrorInvalidContinuation:
		return gnaperror.New(gnaperror.CodeInvalidContinuation, e.Description)
	case grantsvc.ErrorInvalidInteraction:
		return gnaperror.New(gnaperror.CodeInvalidInteraction, e.Description)
	case grantsvc.ErrorUnknownInteraction:
		return gnaperror.New(gnaperror.CodeUnknownInteraction, e.Description)
	case grantsvc.ErrorUserDenied:
		return gnaperror.New(gnaperror.CodeUserDenied, e.Description)
	case grantsvc.ErrorRequestDenied:
		return gnaperror.New(gnaperror.CodeRequestDenied, e.Description)
	case grantsvc.ErrorTooFast:
		return gnaperror.New(gnaperror.CodeTooFast, e.Description)
	}
	return gnaperror.NewWithStatus(gnaperror.CodeRequestDenied, http.StatusInternalServerError, "internal error")
}
