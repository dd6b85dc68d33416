package backend

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrRequestFailed marks any rejected or failed backend round trip
// (network, permission, constraint).
var ErrRequestFailed = errors.New("backend: request failed")

// RequestError 记录失败的操作名
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("backend: %s: %v", e.Op, e.Err) }

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }

// Wrap 将底层错误包装为 RequestError；record not found 原样返回，交由调用方判定
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrPlaceholderClient) {
		return err
	}
	return &RequestError{Op: op, Err: err}
}
