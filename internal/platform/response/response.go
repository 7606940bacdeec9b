package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success writes a 200 with data as the body.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes a 201 with data as the body.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// Error maps err to a status code by its apperror kind. Unknown errors
// become a 500 with a generic message; the cause is attached to the gin
// context so the logging middleware records it.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	status := StatusFor(apperror.KindOf(err))
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, ErrorResponse{Error: "an unexpected error has occurred"})
		return
	}

	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

// StatusFor returns the HTTP status code for an error kind.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindInvalidArgument:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
