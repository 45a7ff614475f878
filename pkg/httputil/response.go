package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondWithError maps err onto a status code and aborts the chain. Details
// of internal errors are logged, never returned.
func RespondWithError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "internal server error"

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		status, message = http.StatusBadRequest, ValidationMessage(verrs)
	default:
		if appErr, ok := apperrors.As(err); ok {
			status = appErr.StatusCode()
			if status < http.StatusInternalServerError {
				message = appErr.Message
			}
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.FullPath()).
			Msg("request failed")
		if status == http.StatusBadGateway {
			message = "upstream service unavailable, please retry"
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

// RespondWithBindError reports a request that failed binding or validation.
func RespondWithBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		RespondWithError(c, err)
		return
	}
	RespondWithError(c, apperrors.NewBadRequest("invalid request body", err))
}

// ValidationMessage renders validator errors as "field: reason" pairs.
func ValidationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field(), reason(e)))
	}
	return strings.Join(parts, "; ")
}

func reason(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "oneof":
		return "must be one of " + e.Param()
	default:
		return "failed " + e.Tag() + " validation"
	}
}
