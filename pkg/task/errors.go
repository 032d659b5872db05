package task

import "errors"

var (
	// ErrNotFound is returned when a task id is unknown to the manager.
	ErrNotFound = errors.New("task not found")

	// ErrResourceExhausted is returned by Create when the number of
	// pending/running tasks is at the configured ceiling.
	ErrResourceExhausted = errors.New("concurrent task limit reached")

	// ErrAlreadyTerminal is returned by Cancel when the task has already
	// reached a terminal status.
	ErrAlreadyTerminal = errors.New("task already terminal")
)
