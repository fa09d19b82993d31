package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"metergate/internal/gate"
	"metergate/internal/services"
)

const (
	userAgent       = "Metergate/0.1.0"
	productionStage = "Production"
)

// MLflowClient implements Client against the MLflow REST API.
type MLflowClient struct {
	baseURL string
	client  *http.Client
}

// NewMLflowClient builds a client for the given tracking URI.
func NewMLflowClient(trackingURI string, timeout time.Duration) *MLflowClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MLflowClient{
		baseURL: strings.TrimRight(strings.TrimSpace(trackingURI), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type modelVersion struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	CurrentStage string `json:"current_stage"`
	RunID        string `json:"run_id"`
}

type latestVersionsResponse struct {
	ModelVersions []modelVersion `json:"model_versions"`
}

type runResponse struct {
	Run struct {
		Data struct {
			Metrics []struct {
				Key   string  `json:"key"`
				Value float64 `json:"value"`
			} `json:"metrics"`
		} `json:"data"`
	} `json:"run"`
}

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Ping verifies the registry endpoint answers its health probe.
func (c *MLflowClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "registry", "ping", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "registry", "ping", "registry unreachable at "+c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "registry", "ping",
			fmt.Sprintf("registry health returned status %d", resp.StatusCode), nil)
	}
	return nil
}

// FetchProduction returns the production baseline for model.
func (c *MLflowClient) FetchProduction(ctx context.Context, model string) (gate.Baseline, error) {
	versions, err := c.latestVersions(ctx, model, []string{productionStage})
	if err != nil {
		return gate.NoBaseline, err
	}

	var production *modelVersion
	for i := range versions {
		if versions[i].CurrentStage == productionStage {
			production = &versions[i]
			break
		}
	}
	if production == nil {
		// Bootstrap: the model exists but nothing was ever promoted, or the
		// model has never been registered at all.
		return gate.NoBaseline, nil
	}

	metrics, err := c.runMetrics(ctx, production.RunID)
	if err != nil {
		return gate.NoBaseline, err
	}
	return gate.WithBaseline(metrics), nil
}

// LatestVersion returns the numerically highest version of model.
func (c *MLflowClient) LatestVersion(ctx context.Context, model string) (string, error) {
	versions, err := c.latestVersions(ctx, model, nil)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", services.Wrap(services.ErrNotFound, "registry", "latest version",
			fmt.Sprintf("model %q has no registered versions", model), nil)
	}
	sort.Slice(versions, func(i, j int) bool {
		vi, _ := strconv.Atoi(versions[i].Version)
		vj, _ := strconv.Atoi(versions[j].Version)
		return vi > vj
	})
	return versions[0].Version, nil
}

// Promote transitions version to the production stage, archiving any version
// already there.
func (c *MLflowClient) Promote(ctx context.Context, model, version string) error {
	body := map[string]any{
		"name":                      model,
		"version":                   version,
		"stage":                     productionStage,
		"archive_existing_versions": true,
	}
	var ignored json.RawMessage
	if err := c.post(ctx, "/api/2.0/mlflow/model-versions/transition-stage", body, &ignored); err != nil {
		return err
	}
	return nil
}

func (c *MLflowClient) latestVersions(ctx context.Context, model string, stages []string) ([]modelVersion, error) {
	body := map[string]any{"name": model}
	if len(stages) > 0 {
		body["stages"] = stages
	}
	var decoded latestVersionsResponse
	err := c.post(ctx, "/api/2.0/mlflow/registered-models/get-latest-versions", body, &decoded)
	if err != nil {
		if isModelMissing(err) {
			// A model that was never registered has no baseline.
			return nil, nil
		}
		return nil, err
	}
	return decoded.ModelVersions, nil
}

func (c *MLflowClient) runMetrics(ctx context.Context, runID string) (gate.MetricSet, error) {
	url := c.baseURL + "/api/2.0/mlflow/runs/get?run_id=" + runID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "get run", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "get run", "registry unreachable at "+c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "get run", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get run "+runID, resp.StatusCode, payload)
	}

	var decoded runResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "get run", "decode response", err)
	}
	metrics := make(gate.MetricSet, len(decoded.Run.Data.Metrics))
	for _, m := range decoded.Run.Data.Metrics {
		metrics[m.Key] = m.Value
	}
	return metrics, nil
}

func (c *MLflowClient) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "registry", "encode request", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrTransient, "registry", "build request", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "registry", "call "+path, "registry unreachable at "+c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "registry", "call "+path, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError("call "+path, resp.StatusCode, payload)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return services.Wrap(services.ErrTransient, "registry", "call "+path, "decode response", err)
		}
	}
	return nil
}

func statusError(operation string, status int, payload []byte) error {
	var decoded apiError
	_ = json.Unmarshal(payload, &decoded)
	detail := decoded.Message
	if detail == "" {
		detail = strings.TrimSpace(string(payload))
	}
	if decoded.ErrorCode == "RESOURCE_DOES_NOT_EXIST" {
		return services.Wrap(services.ErrNotFound, "registry", operation, detail, nil)
	}
	marker := services.ErrTransient
	if status >= 400 && status < 500 {
		marker = services.ErrValidation
	}
	return services.Wrap(marker, "registry", operation,
		fmt.Sprintf("status %d: %s", status, detail), nil)
}

func isModelMissing(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
