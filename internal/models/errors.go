package models

import "errors"

var (
	// ErrRunNotFound Run不存在或已过期
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidTransition 非法的状态转换
	ErrInvalidTransition = errors.New("invalid run state transition")
)
