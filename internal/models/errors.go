package models

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTransport
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	case KindForbidden:
		return "forbidden"
	}
	return "unknown"
}

// 按类别匹配的哨兵错误，配合 errors.Is 使用
var (
	ErrValidation = &Error{Kind: KindValidation, Msg: "invalid input"}
	ErrNotFound   = &Error{Kind: KindNotFound, Msg: "comment not found"}
	ErrConflict   = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrTransport  = &Error{Kind: KindTransport, Msg: "backend unreachable"}
	ErrForbidden  = &Error{Kind: KindForbidden, Msg: "not the owner"}
)

// Error 讨论模块统一错误类型
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别即视为匹配
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError 构造带操作名的错误
func NewError(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WrapError 包装底层错误
func WrapError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 取出错误类别，非 *Error 返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message 面向用户的错误信息
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
