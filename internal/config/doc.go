// Package config loads, normalizes, and validates metergate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates every knob the pipeline and CLI
// need: dataset thresholds, split ratios, tracked metrics, registry
// connection, trainer invocation, and notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
