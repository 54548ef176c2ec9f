package model

import (
	"errors"
	"fmt"
)

// Record validation errors.
var (
	ErrInvalidBib       = errors.New("bib must be 1 to 3 digits")
	ErrInvalidRun       = errors.New("run must be 1 or 2")
	ErrInvalidPoint     = errors.New("point must be S or F")
	ErrInvalidStatus    = errors.New("unknown status")
	ErrInvalidFaultType = errors.New("fault type must be MG, STR or BR")
	ErrInvalidGate      = errors.New("gate number must not be negative")
	ErrMissingID        = errors.New("missing id")
	ErrMissingTimestamp = errors.New("missing timestamp")
)

// ValidBib reports whether bib is 1 to 3 ASCII digits.
func ValidBib(bib string) bool {
	if len(bib) < 1 || len(bib) > 3 {
		return false
	}
	for i := 0; i < len(bib); i++ {
		if bib[i] < '0' || bib[i] > '9' {
			return false
		}
	}
	return true
}

// ValidRun reports whether run is 1 or 2.
func ValidRun(run int) bool {
	return run == 1 || run == 2
}

// Validate reports the first field of e that a timing entry may not carry.
func (e Entry) Validate() error {
	switch {
	case e.ID == "":
		return ErrMissingID
	case !ValidBib(e.Bib):
		return fmt.Errorf("%w: %q", ErrInvalidBib, e.Bib)
	case !e.Point.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidPoint, e.Point)
	case !ValidRun(e.Run):
		return fmt.Errorf("%w: %d", ErrInvalidRun, e.Run)
	case !e.Status.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	case e.Timestamp.IsZero():
		return ErrMissingTimestamp
	}
	return nil
}

// Validate reports the first field of f that a fault may not carry.
func (f Fault) Validate() error {
	switch {
	case f.ID == "":
		return ErrMissingID
	case !ValidBib(f.Bib):
		return fmt.Errorf("%w: %q", ErrInvalidBib, f.Bib)
	case !ValidRun(f.Run):
		return fmt.Errorf("%w: %d", ErrInvalidRun, f.Run)
	case !f.FaultType.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidFaultType, f.FaultType)
	case f.GateNumber < 0:
		return fmt.Errorf("%w: %d", ErrInvalidGate, f.GateNumber)
	case f.Timestamp.IsZero():
		return ErrMissingTimestamp
	}
	return nil
}
