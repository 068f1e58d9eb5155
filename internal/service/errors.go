package service

import (
	"errors"
	"fmt"
)

// 业务结果类错误，由 handler 转为结构化的 4xx 响应
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrValidation                = errors.New("validation error")
	ErrSelfFollowForbidden       = errors.New("cannot follow self")
	ErrAlreadyFollowingOrPending = errors.New("already following or request pending")
	ErrRequestNotFound           = errors.New("follow request not found")
	ErrTargetNotFound            = errors.New("target user not found")
	ErrNotFound                  = errors.New("not found")
)

// ErrTransient 存储 / 网络故障；调用方应先重新查询状态再决定是否重试
var ErrTransient = errors.New("transient failure")

type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
