package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to load appointment: %w", NewNotFound("appointment", nil))

	assert.True(t, Is(err, NotFoundError))
	assert.False(t, Is(err, ForbiddenError))

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "appointment not found", appErr.Message)
}

func TestStatusCode(t *testing.T) {
	cases := map[*AppError]int{
		NewNotFound("summary", nil):          http.StatusNotFound,
		NewForbidden("nope"):                 http.StatusForbidden,
		NewConflict("session closed"):        http.StatusConflict,
		NewUpstream("chat completion", nil):  http.StatusBadGateway,
		NewInconsistent("half written", nil): http.StatusInternalServerError,
		NewBadRequest("bad", nil):            http.StatusBadRequest,
		Unauthorized(nil):                    http.StatusUnauthorized,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.StatusCode(), err.Message)
	}
}

func TestErrorIncludesCause(t *testing.T) {
	err := NewUpstream("transcription", fmt.Errorf("deadline exceeded"))
	assert.Equal(t, "transcription failed: deadline exceeded", err.Error())
}
