package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const ratioTolerance = 1e-6

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDataset(); err != nil {
		return err
	}
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateGate(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DatasetDir) == "" {
		return errors.New("paths.dataset_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArtifactsDir) == "" {
		return errors.New("paths.artifacts_dir must be set")
	}
	return nil
}

func (c *Config) validateDataset() error {
	if c.Dataset.EnforceDimensions {
		if c.Dataset.ExpectedWidth <= 0 || c.Dataset.ExpectedHeight <= 0 {
			return errors.New("dataset.expected_width and dataset.expected_height must be positive when dataset.enforce_dimensions is true")
		}
	}
	if c.Dataset.MinForegroundPixels < 0 {
		return errors.New("dataset.min_foreground_pixels must not be negative")
	}
	return nil
}

func (c *Config) validateSplit() error {
	ratios := c.Ratios()
	for name, value := range map[string]float64{
		"split.train_ratio": ratios[0],
		"split.val_ratio":   ratios[1],
		"split.test_ratio":  ratios[2],
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	sum := ratios[0] + ratios[1] + ratios[2]
	if math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("split ratios must sum to 1.0, got %.6f", sum)
	}
	return nil
}

func (c *Config) validateGate() error {
	if len(c.Gate.TrackedMetrics) == 0 {
		return errors.New("gate.tracked_metrics must name at least one metric")
	}
	seen := make(map[string]struct{}, len(c.Gate.TrackedMetrics))
	for _, name := range c.Gate.TrackedMetrics {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return errors.New("gate.tracked_metrics must not contain blank names")
		}
		if _, dup := seen[trimmed]; dup {
			return fmt.Errorf("gate.tracked_metrics lists %q more than once", trimmed)
		}
		seen[trimmed] = struct{}{}
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.ModelName == "" {
		return errors.New("registry.model_name must be set")
	}
	if c.Registry.RequestTimeout <= 0 {
		return errors.New("registry.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
