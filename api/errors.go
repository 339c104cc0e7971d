package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circleci/todo/errs"
	"github.com/circleci/todo/httpserver/ginrouter"
)

type errorResponse = ginrouter.ErrorBody

// abortWithError renders err with the status its kind maps to. The error is attached to
// the context so the o11y middleware records it on the request span.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(errs.HTTPStatus(err), errorResponse{
		Kind:    errs.KindOf(err).String(),
		Message: err.Error(),
	})
}

func abortBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Kind:    "bad_request",
		Message: msg,
	})
}
