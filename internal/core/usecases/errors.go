package usecases

import (
	"errors"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record does not exist. Adapters report
	// the same value.
	ErrNotFound = domain.ErrRecordNotFound
	// ErrInvalidSubmission wraps every submission validation failure.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrInvalidQuery is returned for unusable search or filter input.
	ErrInvalidQuery = errors.New("invalid query")
)
