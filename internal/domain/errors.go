package domain

import "errors"

var (
	ErrInstanceExists   = errors.New("instance already exists")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrNotReady         = errors.New("instance is not ready")
)
