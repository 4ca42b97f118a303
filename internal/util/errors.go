package util

import (
	"errors"
	"fmt"
)

// ErrorKind 领域错误分类，决定 HTTP 状态码与 hub 错误帧
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindConflict     ErrorKind = "conflict"
)

// 分类哨兵，配合 errors.Is 使用
var (
	ErrValidation   = &AppError{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound     = &AppError{Kind: KindNotFound, Message: "resource not found"}
	ErrUnauthorized = &AppError{Kind: KindUnauthorized, Message: "not authorized"}
	ErrConflict     = &AppError{Kind: KindConflict, Message: "conflict"}
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同类即相等，errors.Is(err, ErrNotFound) 对任意 not_found 错误成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validation(format string, args ...interface{}) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Denied(format string, args ...interface{}) error {
	return &AppError{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Wrap 保留底层错误并打上分类
func Wrap(kind ErrorKind, err error, message string) error {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf 非领域错误返回空字符串
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
