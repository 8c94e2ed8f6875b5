// Package apperr 定义服务端错误分类及其HTTP状态码
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"ai_chat_mini/internal/models"
)

// Kind 错误类别
type Kind int

// 错误类别
const (
	InvalidInput    Kind = iota + 1 // 缺少必填字段
	Unauthorized                    // 密码或签名不匹配
	UpstreamFailure                 // 上游网络故障或上游返回错误
	DecodeFailure                   // 流事件解析失败，只记录不返回
)

// String 返回类别名称
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case Unauthorized:
		return "Unauthorized"
	case UpstreamFailure:
		return "UpstreamFailure"
	case DecodeFailure:
		return "DecodeFailure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status 返回类别对应的HTTP状态码
func (k Kind) Status() int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error 带类别的错误
type Error struct {
	Kind    Kind
	Code    string // 可选错误码，上游错误时为上游的错误名
	Message string
	Err     error // 原始错误
}

// New 创建错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 包装底层错误，Code取底层错误的类型名
func Wrap(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    Name(err),
		Message: err.Error(),
		Err:     err,
	}
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.Err
}

// Status 返回HTTP状态码
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Response 转换为响应体
func (e *Error) Response() models.ErrorResponse {
	return models.ErrorResponse{Error: models.ErrorMessage{Code: e.Code, Message: e.Message}}
}

// From 把任意错误转换为*Error，未分类的错误视为上游故障
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(UpstreamFailure, err)
}
