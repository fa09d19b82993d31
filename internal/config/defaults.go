package config

const (
	defaultDatasetDir          = "~/.local/share/metergate/dataset"
	defaultIncomingDir         = "~/.local/share/metergate/incoming"
	defaultArtifactsDir        = "~/.local/share/metergate/artifacts"
	defaultLogDir              = "~/.local/share/metergate/logs"
	defaultExpectedWidth       = 512
	defaultExpectedHeight      = 512
	defaultMinForegroundPixels = 32
	defaultTrainRatio          = 0.8
	defaultValRatio            = 0.1
	defaultTestRatio           = 0.1
	defaultModelName           = "water-meter-segmentation"
	defaultRegistryTimeout     = 10
	defaultTrainerTimeout      = 7200
	defaultNotifyTimeout       = 10
	defaultMinFreeGiB          = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatasetDir:   defaultDatasetDir,
			IncomingDir:  defaultIncomingDir,
			ArtifactsDir: defaultArtifactsDir,
			LogDir:       defaultLogDir,
		},
		Dataset: Dataset{
			ExpectedWidth:       defaultExpectedWidth,
			ExpectedHeight:      defaultExpectedHeight,
			EnforceDimensions:   true,
			MinForegroundPixels: defaultMinForegroundPixels,
		},
		Split: Split{
			TrainRatio: defaultTrainRatio,
			ValRatio:   defaultValRatio,
			TestRatio:  defaultTestRatio,
		},
		Gate: Gate{
			TrackedMetrics: []string{"dice", "iou"},
		},
		Registry: Registry{
			ModelName:      defaultModelName,
			RequestTimeout: defaultRegistryTimeout,
		},
		Trainer: Trainer{
			Timeout: defaultTrainerTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Validation:     true,
			Training:       true,
			Promotion:      true,
			Errors:         true,
		},
		Preflight: Preflight{
			MinFreeGiB: defaultMinFreeGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
