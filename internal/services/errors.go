package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks caller-caused structural or input failures: malformed
	// samples, empty merges, bad split ratios, metric mismatches. Not retryable;
	// the data or configuration must be fixed.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration values.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing resources (runs, models, files).
	ErrNotFound = errors.New("not found")
	// ErrTransient marks infrastructure faults the orchestration layer may
	// retry, such as an unreachable model registry. The pipeline itself never
	// retries; backoff policy belongs to the caller.
	ErrTransient = errors.New("transient failure")
	// ErrExternalTool marks failures reported by an external collaborator,
	// such as the training job exiting non-zero.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the orchestration layer may retry the operation
// that produced err.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
