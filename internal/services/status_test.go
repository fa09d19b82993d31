package services_test

import (
	"errors"
	"testing"

	"metergate/internal/provenance"
	"metergate/internal/services"
)

func TestFailureStatusClassification(t *testing.T) {
	cases := []struct {
		marker error
		want   provenance.Status
	}{
		{services.ErrValidation, provenance.StatusReview},
		{services.ErrConfiguration, provenance.StatusReview},
		{services.ErrNotFound, provenance.StatusReview},
		{services.ErrTransient, provenance.StatusFailed},
		{services.ErrExternalTool, provenance.StatusFailed},
		{errors.New("untagged"), provenance.StatusFailed},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if got := services.FailureStatus(err); got != tc.want {
			t.Fatalf("FailureStatus(%v) = %s, want %s", tc.marker, got, tc.want)
		}
	}
}
