package pipeline

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrorKind 错误分类
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindConfiguration
	KindProvider
	KindStore
	KindNotification
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProvider:
		return "provider"
	case KindStore:
		return "store"
	case KindNotification:
		return "notification"
	default:
		return "unclassified"
	}
}

// Error 带分类和阶段的流水线错误
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap 包装错误并记录调用栈，err为nil时返回nil
func Wrap(kind ErrorKind, stage Stage, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Err: eris.Wrap(err, msg)}
}

// ConfigurationError 配置错误，采集开始前终止
func ConfigurationError(err error) error {
	return Wrap(KindConfiguration, StageInit, err, "配置错误")
}

// KindOf 错误分类，无法识别的错误为 KindUnclassified
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnclassified
}

// StageOf 错误发生的阶段
func StageOf(err error) Stage {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return StageInit
}

// Trace 完整的错误链和调用栈，用于日志
func Trace(err error) string {
	if err == nil {
		return ""
	}
	return eris.ToString(err, true)
}
