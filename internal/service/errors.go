package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyText     = errors.New("text is required")
	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrInvalidType   = errors.New("type must be income or expense")
	ErrTaskNotFound  = errors.New("task not found")
	ErrWriteFailed   = errors.New("write failed")
)

func writeFailed(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrWriteFailed, err)
}
