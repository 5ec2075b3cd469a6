package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")

	// Transcoding failures
	ErrProbeFailure   = errors.New("probe failed")
	ErrLaunchFailure  = errors.New("encoder launch failed")
	ErrProcessFailure = errors.New("encoder process failed")
	ErrStore          = errors.New("job store error")
	ErrUnexpected     = errors.New("unexpected supervisor failure")

	// Delivery and dispatch
	ErrDelivery  = errors.New("subscriber delivery failed")
	ErrJobLocked = errors.New("job is locked by another worker")
	ErrQueueFull = errors.New("worker queue full")
)
