package errorx

import (
	"errors"
	"fmt"
	"net/http"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 面向调用方的错误消息
	cause error  // 被包装的底层错误
}

// Error 实现 Go 标准 error 接口
// 当存在底层错误时，返回格式为 "消息: 底层错误"；否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 实现 errors.Unwrap 接口，支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
// 用法: errorx.Wrap(err, CodeNotFound, "User not found")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// GetMsg 从错误中提取面向调用方的消息，不含底层错误细节
func GetMsg(err error) string {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Msg
	}
	return "系统繁忙，请稍后重试"
}

// 业务状态码常量定义
const (
	CodeInvalidParam       = 1001 // 请求参数错误
	CodeServerBusy         = 1005 // 服务繁忙
	CodeUnauthorized       = 1006 // 未授权/认证失败
	CodeForbidden          = 1007 // 无权限（非成员或非管理员）
	CodeNotFound           = 1008 // 资源不存在
	CodeConflict           = 1009 // 资源冲突（重复成员、与自己建聊）
	CodeDBError            = 1010 // 数据库错误
	CodeCacheError         = 1011 // 缓存错误
	CodeFileTypeNotAllowed = 1012 // 文件类型不允许
	CodeFileTooLarge       = 1013 // 文件过大
	CodeTooManyRequests    = 1014 // 请求过于频繁
)

// 预定义常用错误实例
var (
	ErrServerBusy   = New(CodeServerBusy, "服务繁忙")
	ErrAccessDenied = New(CodeForbidden, "Access denied")
)

// HTTPStatus 将业务错误码映射为 HTTP 状态码
func HTTPStatus(code int) int {
	switch code {
	case CodeInvalidParam, CodeFileTypeNotAllowed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Is 判断错误链中是否存在指定业务码
func Is(err error, code int) bool {
	var codeErr *CodeError
	return errors.As(err, &codeErr) && codeErr.Code == code
}

// IsNotFound 检查错误是否为"未找到"类型
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsConflict 检查错误是否为唯一约束冲突
func IsConflict(err error) bool {
	return Is(err, CodeConflict)
}
