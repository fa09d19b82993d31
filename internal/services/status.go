package services

import (
	"errors"

	"metergate/internal/provenance"
)

// FailureStatus maps a pipeline error to the run status the provenance store
// should persist after the run fails. Data and configuration problems need a
// human, so they park in review; everything else is an infrastructure fault.
func FailureStatus(err error) provenance.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return provenance.StatusReview
	default:
		return provenance.StatusFailed
	}
}
