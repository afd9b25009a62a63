package rcexpires

import "errors"

var (
	ErrNotFound  = errors.New("rcexpires: not found")
	ErrConflict  = errors.New("rcexpires: conflict")
	ErrClosed    = errors.New("rcexpires: store closed")
	ErrNoStore   = errors.New("rcexpires: store required")
	ErrInvalidID = errors.New("rcexpires: invalid record id")
)

const (
	DefaultPageSize          = 100
	DefaultContinueThreshold = 25
)
