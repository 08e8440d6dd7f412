package engine

import (
	"errors"
	"fmt"

	"pgfnsync/pkg/platform/sentinel"
)

var (
	// ErrAlreadyRunning is returned when a run is requested while another is active.
	ErrAlreadyRunning = fmt.Errorf("automation already running: %w", sentinel.ErrInvalidState)
	// ErrDependencyUnavailable wraps a failed startup connectivity check.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrWriteRejected is returned when the CRM answers a field update with false.
	ErrWriteRejected = fmt.Errorf("crm rejected field update: %w", sentinel.ErrRejected)
)
