package server

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

// respondAppError writes the stable code/message pair for an error.
func respondAppError(c *gin.Context, err error) {
	c.JSON(common.HTTPStatus(err), gin.H{
		"code":    common.ErrorCode(err),
		"message": errorMessage(err),
	})
}

// errorMessage keeps internal detail out of responses: AppError messages are
// written for callers, anything else collapses to a generic line.
func errorMessage(err error) string {
	var ae *common.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}
