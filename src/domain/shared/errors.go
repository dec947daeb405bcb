package shared

import "errors"

var (
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInternal           = errors.New("internal error")
)
