package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/nurpe/procurement-ipc/internal/repository"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidInput           = errors.New("invalid input")
	ErrContractNotActive      = errors.New("contract is not active")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidContractState   = errors.New("contract status change not allowed")
	ErrAlreadyExists          = errors.New("already exists")
)

// translateStorageError maps repository errors onto service errors.
func translateStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	case errors.Is(err, repository.ErrStaleVersion):
		return ErrConcurrentModification
	default:
		return err
	}
}
