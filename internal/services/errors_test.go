package services_test

import (
	"errors"
	"strings"
	"testing"

	"metergate/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "merge", "check pairing", "sample id_7 missing mask", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "id_7") {
		t.Fatalf("expected offending sample id in message, got %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "baseline", "fetch production", "registry unreachable", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("transient errors must be retryable")
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected default transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryableRejectsValidation(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "split", "ratios", "ratios sum to 0.9", nil)
	if services.Retryable(err) {
		t.Fatal("validation errors must not be retryable")
	}
}
