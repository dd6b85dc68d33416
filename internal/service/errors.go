package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/backend"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("only the author may do this")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrProfileNotCreated 账号已创建但资料写入失败（两步非原子，不做补偿）
	ErrProfileNotCreated = errors.New("account created but profile could not be saved")
)

// requestErr 将 record not found 映射为 ErrNotFound，其余包装为 backend.ErrRequestFailed
func requestErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return backend.Wrap(op, err)
}
