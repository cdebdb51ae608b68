package domain

import "errors"

var (
	ErrInvalidGeometry  = errors.New("invalid geometry")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrInvalidType      = errors.New("invalid waypoint type")
	ErrInvalidKind      = errors.New("invalid record kind")
	ErrKindMismatch     = errors.New("record kind mismatch")
	ErrMissingID        = errors.New("missing record id")
	ErrRecordNotFound   = errors.New("record not found")
)
