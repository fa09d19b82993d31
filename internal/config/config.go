package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DatasetDir   string `toml:"dataset_dir"`
	IncomingDir  string `toml:"incoming_dir"`
	ArtifactsDir string `toml:"artifacts_dir"`
	LogDir       string `toml:"log_dir"`
}

// Dataset contains integrity-validation thresholds for image/mask pairs.
type Dataset struct {
	ExpectedWidth  int `toml:"expected_width"`
	ExpectedHeight int `toml:"expected_height"`
	// EnforceDimensions toggles the expected-resolution check. Disable it when
	// the training pipeline resizes internally.
	EnforceDimensions   bool `toml:"enforce_dimensions"`
	MinForegroundPixels int  `toml:"min_foreground_pixels"`
}

// Split contains train/validation/test partition ratios.
type Split struct {
	TrainRatio float64 `toml:"train_ratio"`
	ValRatio   float64 `toml:"val_ratio"`
	TestRatio  float64 `toml:"test_ratio"`
}

// Gate contains promotion decision settings.
type Gate struct {
	// TrackedMetrics is the fixed set of metric names that must all strictly
	// improve over the production baseline for a candidate to be promoted.
	TrackedMetrics []string `toml:"tracked_metrics"`
	// AutoPromote lets the run command call the registry transition itself
	// when the decision says promote. When false the decision is only reported.
	AutoPromote bool `toml:"auto_promote"`
}

// Registry contains model registry (MLflow) connection settings.
type Registry struct {
	TrackingURI    string `toml:"tracking_uri"`
	ModelName      string `toml:"model_name"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Trainer contains settings for the external training job.
type Trainer struct {
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	MetricsPath string   `toml:"metrics_path"`
	Timeout     int      `toml:"timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Validation     bool   `toml:"validation"`
	Training       bool   `toml:"training"`
	Promotion      bool   `toml:"promotion"`
	Errors         bool   `toml:"errors"`
}

// Preflight contains thresholds for pre-run environment checks.
type Preflight struct {
	MinFreeGiB int `toml:"min_free_gib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for metergate.
//
// Configuration sections by subsystem:
//   - Paths: dataset, incoming-sample, artifact, and log directories
//   - Dataset: integrity-validation thresholds
//   - Split: train/val/test ratios
//   - Gate: tracked metrics and promotion policy
//   - Registry: MLflow connection and model name
//   - Trainer: external training job invocation
//   - Notifications: ntfy push notification settings
//   - Preflight: environment check thresholds
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Dataset       Dataset       `toml:"dataset"`
	Split         Split         `toml:"split"`
	Gate          Gate          `toml:"gate"`
	Registry      Registry      `toml:"registry"`
	Trainer       Trainer       `toml:"trainer"`
	Notifications Notifications `toml:"notifications"`
	Preflight     Preflight     `toml:"preflight"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/metergate/config.toml")
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("metergate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DatasetDir, c.Paths.IncomingDir, c.Paths.ArtifactsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite provenance database location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.ArtifactsDir, "runs.db")
}

// LockPath returns the single-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.ArtifactsDir, "metergate.lock")
}

// Ratios returns the configured split ratios in train, val, test order.
func (c *Config) Ratios() [3]float64 {
	return [3]float64{c.Split.TrainRatio, c.Split.ValRatio, c.Split.TestRatio}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DatasetDir, err = expandPath(c.Paths.DatasetDir); err != nil {
		return err
	}
	if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
		return err
	}
	if c.Paths.ArtifactsDir, err = expandPath(c.Paths.ArtifactsDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Trainer.MetricsPath, err = expandPath(c.Trainer.MetricsPath); err != nil {
		return err
	}
	c.Registry.TrackingURI = strings.TrimRight(strings.TrimSpace(c.Registry.TrackingURI), "/")
	c.Registry.ModelName = strings.TrimSpace(c.Registry.ModelName)
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
