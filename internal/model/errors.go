package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 引擎错误类型（封闭集合）
type ErrorKind int

const (
	// RequestError 无法访问上游（网络错误、超时、非成功状态码）
	RequestError ErrorKind = iota + 1
	// EmptyResultSet 上游明确表示没有结果
	EmptyResultSet
	// UnexpectedError 内部错误：选择器无效、配置值非法、响应无法解析
	UnexpectedError
)

func (k ErrorKind) String() string {
	switch k {
	case RequestError:
		return "RequestError"
	case EmptyResultSet:
		return "EmptyResultSet"
	case UnexpectedError:
		return "UnexpectedError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// MarshalText 序列化为类型名
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 从类型名解析
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for _, kind := range []ErrorKind{RequestError, EmptyResultSet, UnexpectedError} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind: %q", text)
}

// 用于 errors.Is 判断的哨兵值
var (
	ErrRequest        = &EngineError{Kind: RequestError}
	ErrEmptyResultSet = &EngineError{Kind: EmptyResultSet}
	ErrUnexpected     = &EngineError{Kind: UnexpectedError}
)

// EngineError 引擎适配器返回的错误
type EngineError struct {
	Kind    ErrorKind
	Engine  string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	msg := e.Kind.String()
	if e.Engine != "" {
		msg = e.Engine + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is 按错误类型比较
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewRequestError 创建请求错误
func NewRequestError(message string, err error) *EngineError {
	if errors.Is(err, context.DeadlineExceeded) && message == "" {
		message = "timeout"
	}
	return &EngineError{Kind: RequestError, Message: message, Err: err}
}

// NewEmptyResultSet 创建空结果错误
func NewEmptyResultSet(message string) *EngineError {
	return &EngineError{Kind: EmptyResultSet, Message: message}
}

// NewUnexpectedError 创建内部错误
func NewUnexpectedError(message string, err error) *EngineError {
	return &EngineError{Kind: UnexpectedError, Message: message, Err: err}
}

// WithEngine 为错误标记引擎名称，非 EngineError 会被视为 UnexpectedError
func WithEngine(err error, engine string) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		c := *ee
		c.Engine = engine
		return &c
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &EngineError{Kind: RequestError, Engine: engine, Message: "timeout", Err: err}
	}
	return &EngineError{Kind: UnexpectedError, Engine: engine, Err: err}
}

// KindOf 获取错误类型
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return UnexpectedError
}
