package listing

import (
	"errors"
	"fmt"
)

// ErrNegativeViolations is returned for a negative open-violations count.
var ErrNegativeViolations = errors.New("open violations must not be negative")

// RecordStatus is the traffic-light summary of a building's inspection record.
type RecordStatus string

const (
	StatusGood RecordStatus = "good"
	StatusWarn RecordStatus = "warn"
	StatusBad  RecordStatus = "bad"
)

// ClassifyRecordStatus maps 0 to good, 1 to warn and 2 or more to bad.
func ClassifyRecordStatus(openViolations int) (RecordStatus, error) {
	switch {
	case openViolations < 0:
		return "", fmt.Errorf("classify %d: %w", openViolations, ErrNegativeViolations)
	case openViolations == 0:
		return StatusGood, nil
	case openViolations == 1:
		return StatusWarn, nil
	default:
		return StatusBad, nil
	}
}

// Label is the indicator caption for a status.
func (s RecordStatus) Label(openViolations int) string {
	switch s {
	case StatusGood:
		return "Clean record"
	case StatusWarn:
		return "1 open item"
	default:
		return fmt.Sprintf("%d violations", openViolations)
	}
}
