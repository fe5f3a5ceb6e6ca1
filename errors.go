package dxmetrics

import (
	"errors"
	"fmt"
)

// Sentinel errors for races between lifecycle events. They are only
// attached to debug logs; a missing timer or token means nothing to report.
var (
	// ErrMissingTimer indicates no timer was held for a key at consume time.
	ErrMissingTimer = errors.New("dxmetrics: timer not found")

	// ErrMissingToken indicates a build reached afterCompile without a timer token.
	ErrMissingToken = errors.New("dxmetrics: no compilation token present")
)

// ErrClosed is returned when closing a plugin twice.
var ErrClosed = errors.New("dxmetrics: plugin closed")

// ConfigurationError reports an option that failed the preflight check.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dxmetrics: invalid %s: %s", e.Field, e.Reason)
}
