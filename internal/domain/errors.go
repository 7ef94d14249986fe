package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks requests that can never succeed as specified.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotImplemented marks metrics that cannot be computed for the given inputs.
	ErrNotImplemented = errors.New("not implemented")
	// ErrDataUnavailable marks failures fetching data from a collaborator.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrUnknownSource is returned by data sources that do not know a dataset name.
	ErrUnknownSource = errors.New("unknown source")
)

// Status values reported per forecast.
const (
	StatusOK              = "ok"
	StatusNotImplemented  = "not_implemented"
	StatusConfiguration   = "configuration"
	StatusDataUnavailable = "data_unavailable"
	StatusInternal        = "internal"
)

// Configf returns an ErrConfiguration with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Unavailablef returns an ErrDataUnavailable with a formatted message.
func Unavailablef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataUnavailable, fmt.Sprintf(format, args...))
}

// Classify maps an error to the status reported in results and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotImplemented):
		return StatusNotImplemented
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrUnknownSource):
		return StatusConfiguration
	case errors.Is(err, ErrDataUnavailable):
		return StatusDataUnavailable
	default:
		return StatusInternal
	}
}
