package server

import (
	"fmt"
	"net/http"
	"testing"

	"todoapp/internal/domain/errors"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want struct {
			status int
			code   string
		}
	}{
		{name: "invalid token", err: errors.ErrInvalidToken, want: struct {
			status int
			code   string
		}{http.StatusBadRequest, "invalid_token"}},
		{name: "expired token", err: errors.ErrExpiredToken, want: struct {
			status int
			code   string
		}{http.StatusGone, "expired_token"}},
		{name: "already verified", err: errors.ErrAlreadyVerified, want: struct {
			status int
			code   string
		}{http.StatusConflict, "already_verified"}},
		{name: "wrapped not found", err: fmt.Errorf("get task: %w", errors.ErrNotFound), want: struct {
			status int
			code   string
		}{http.StatusNotFound, "not_found"}},
		{name: "user exists", err: errors.ErrUserAlreadyExists, want: struct {
			status int
			code   string
		}{http.StatusConflict, "conflict"}},
		{name: "field validation", err: errors.ErrInvalidTitle, want: struct {
			status int
			code   string
		}{http.StatusBadRequest, "validation_failed"}},
		{name: "credentials", err: errors.ErrInvalidCredentials, want: struct {
			status int
			code   string
		}{http.StatusUnauthorized, "unauthorized"}},
		{name: "rate limited", err: errors.ErrTooManyRequests, want: struct {
			status int
			code   string
		}{http.StatusTooManyRequests, "rate_limited"}},
		{name: "anything else", err: fmt.Errorf("connection reset"), want: struct {
			status int
			code   string
		}{http.StatusInternalServerError, "internal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want.status, statusFor(tt.err))
			assert.Equal(t, tt.want.code, errors.Code(tt.err))
		})
	}
}
