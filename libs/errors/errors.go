package errors

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// 错误码
const (
	CodeConfiguration = 1001
	CodeValidation    = 1002
	CodeRateLimit     = 1003
	CodeUpstream      = 1004
	CodeCancelled     = 1005
)

// StatusClientClosedRequest 客户端主动断开, 不会真正写回
const StatusClientClosedRequest = 499

// StackError 带错误码、HTTP 状态和调用栈的错误
type StackError struct {
	code   int
	status int
	msg    string
	cause  error
	// Details 附加在响应体里的字段, 例如字段级校验错误
	Details map[string]any
}

func New(code, status int, msg string) *StackError {
	return &StackError{code: code, status: status, msg: msg, cause: pkgerrors.New(msg)}
}

func Wrap(err error, code, status int, msg string) *StackError {
	return &StackError{code: code, status: status, msg: msg, cause: pkgerrors.WithStack(err)}
}

func (e *StackError) Code() int { return e.code }

func (e *StackError) Msg() string { return e.msg }

func (e *StackError) Status() int { return e.status }

func (e *StackError) Error() string {
	if e.cause != nil && e.cause.Error() != e.msg {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *StackError) Unwrap() error { return e.cause }

// Format 支持 %+v 打印调用栈
func (e *StackError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') && e.cause != nil {
		fmt.Fprintf(s, "%s\n%+v", e.msg, e.cause)
		return
	}
	fmt.Fprint(s, e.Error())
}

func (e *StackError) WithDetail(key string, value any) *StackError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func Configuration(msg string) *StackError {
	return New(CodeConfiguration, http.StatusInternalServerError, msg)
}

func Validation(fields map[string][]string) *StackError {
	return New(CodeValidation, http.StatusBadRequest, "Invalid input").WithDetail("errors", fields)
}

func RateLimited(retryAfter int) *StackError {
	return New(CodeRateLimit, http.StatusTooManyRequests, "Too many requests. Please try again later.").
		WithDetail("retryAfter", retryAfter)
}

// Upstream 上游失败, msg 是返回给调用方的文字
func Upstream(err error, msg string) *StackError {
	if err == nil {
		return New(CodeUpstream, http.StatusInternalServerError, msg)
	}
	return Wrap(err, CodeUpstream, http.StatusInternalServerError, msg)
}

func Cancelled(err error) *StackError {
	return Wrap(err, CodeCancelled, StatusClientClosedRequest, "Request cancelled")
}

// As 取出链上的 StackError
func As(err error) (*StackError, bool) {
	var se *StackError
	if pkgerrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Is 判断错误码
func Is(err error, code int) bool {
	se, ok := As(err)
	return ok && se.code == code
}
