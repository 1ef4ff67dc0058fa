package httpdto

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "gigchat/pkg/errors"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"auth required", apperrors.ErrAuthRequired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not participant", apperrors.ErrNotParticipant, http.StatusForbidden, "NOT_PARTICIPANT"},
		{"not sender", apperrors.ErrNotSender, http.StatusForbidden, "NOT_SENDER"},
		{"validation", apperrors.ErrValidation, http.StatusBadRequest, "VALIDATION"},
		{"self conversation", apperrors.ErrSelfConversation, http.StatusBadRequest, "VALIDATION"},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unmapped", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"wrapped sentinel", fmt.Errorf("send: %w", apperrors.ErrNotParticipant), http.StatusForbidden, "NOT_PARTICIPANT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := ErrorCode(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}

func TestFromErrorBuildsEnvelope(t *testing.T) {
	status, resp := FromError(apperrors.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Code)
	assert.Equal(t, apperrors.ErrNotFound.Error(), resp.Error)
}
