package repository

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from
// callers.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidAlert = errors.New("invalid alert")
)
