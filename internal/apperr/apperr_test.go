package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_Status(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, InvalidInput.Status())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized.Status())
	assert.Equal(t, http.StatusInternalServerError, UpstreamFailure.Status())
	assert.Equal(t, http.StatusInternalServerError, DecodeFailure.Status())
}

func TestError_Response(t *testing.T) {
	e := New(Unauthorized, "Invalid password.")
	resp := e.Response()
	assert.Equal(t, "Invalid password.", resp.Error.Message)
	assert.Empty(t, resp.Error.Code)
	assert.Equal(t, "Unauthorized: Invalid password.", e.Error())
}

func TestFrom(t *testing.T) {
	orig := New(InvalidInput, "No input text.")
	wrapped := fmt.Errorf("处理失败: %w", orig)
	assert.Same(t, orig, From(wrapped))

	plain := errors.New("boom")
	got := From(plain)
	assert.Equal(t, UpstreamFailure, got.Kind)
	assert.Equal(t, "boom", got.Message)
	assert.ErrorIs(t, got, plain)
}

func TestName(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"超时", fmt.Errorf("x: %w", context.DeadlineExceeded), "TimeoutError"},
		{"取消", context.Canceled, "AbortError"},
		{"DNS", &url.Error{Op: "Post", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, "DNSError"},
		{"连接拒绝", &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, "OpError"},
		{"普通错误", errors.New("boom"), "*errors.errorString"},
		{"空", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.err))
		})
	}
}
