package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"metergate/internal/config"
	"metergate/internal/gate"
	"metergate/internal/logging"
	"metergate/internal/services"
)

// TrainRequest carries everything a training job needs to reproduce a run.
type TrainRequest struct {
	RunID        string
	Seed         int64
	DatasetDir   string
	ManifestPath string
}

// Trainer runs one training job and returns its evaluation metrics. The
// network architecture and training loop live entirely behind this interface;
// the pipeline only consumes the resulting scores.
type Trainer interface {
	Train(ctx context.Context, req TrainRequest) (gate.MetricSet, error)
}

// ExecTrainer shells out to an external training command. The command
// receives the split manifest path as its final argument plus METERGATE_*
// environment variables, and must write its evaluation metrics as a JSON
// object of name/value pairs to the configured metrics path.
type ExecTrainer struct {
	cfg    config.Trainer
	logger *slog.Logger
}

// NewExecTrainer builds a trainer from the trainer config section.
func NewExecTrainer(cfg config.Trainer, logger *slog.Logger) *ExecTrainer {
	return &ExecTrainer{cfg: cfg, logger: logging.NewComponentLogger(logger, "trainer")}
}

// Train runs the configured command and reads the metrics it produced.
func (t *ExecTrainer) Train(ctx context.Context, req TrainRequest) (gate.MetricSet, error) {
	if strings.TrimSpace(t.cfg.Command) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "training", "exec", "no trainer command configured", nil)
	}

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.cfg.Timeout)*time.Second)
		defer cancel()
	}

	// Stale metrics from an earlier run must never be mistaken for this
	// run's output.
	if err := os.Remove(t.cfg.MetricsPath); err != nil && !os.IsNotExist(err) {
		return nil, services.Wrap(services.ErrConfiguration, "training", "exec", "clear stale metrics file", err)
	}

	args := append(append([]string(nil), t.cfg.Args...), req.ManifestPath)
	cmd := exec.CommandContext(ctx, t.cfg.Command, args...)
	cmd.Env = append(os.Environ(),
		"METERGATE_RUN_ID="+req.RunID,
		fmt.Sprintf("METERGATE_SEED=%d", req.Seed),
		"METERGATE_DATASET_DIR="+req.DatasetDir,
		"METERGATE_MANIFEST="+req.ManifestPath,
		"METERGATE_METRICS_PATH="+t.cfg.MetricsPath,
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	t.logger.Info("training started",
		logging.String(logging.FieldRunID, req.RunID),
		logging.String("command", t.cfg.Command),
		logging.Int64("seed", req.Seed))

	start := time.Now()
	if err := cmd.Run(); err != nil {
		detail := fmt.Sprintf("trainer %s failed: %s", t.cfg.Command, tail(output.String(), 2048))
		return nil, services.Wrap(services.ErrExternalTool, "training", "exec", detail, err)
	}

	metrics, err := ReadMetricsFile(t.cfg.MetricsPath)
	if err != nil {
		return nil, err
	}

	t.logger.Info("training completed",
		logging.String(logging.FieldRunID, req.RunID),
		logging.Duration("elapsed", time.Since(start)),
		logging.String("metrics", metrics.String()))
	return metrics, nil
}

// ReadMetricsFile parses a metrics JSON file written by a training job: a
// flat object of metric name to float value.
func ReadMetricsFile(path string) (gate.MetricSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "training", "metrics", "training produced no metrics file", err)
	}
	var metrics gate.MetricSet
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "training", "metrics", fmt.Sprintf("malformed metrics file %s", path), err)
	}
	if len(metrics) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "training", "metrics", fmt.Sprintf("metrics file %s holds no metrics", path), nil)
	}
	return metrics, nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
