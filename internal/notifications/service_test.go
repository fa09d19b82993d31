package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"metergate/internal/config"
	"metergate/internal/gate"
	"metergate/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunStarted(context.Background(), "run-1", 49); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyRunStarted(context.Background(), "run-1", 49)
			},
			expectTitle:   "Metergate - Run Started",
			expectMessage: "Started pipeline run run-1 with 49 samples",
			expectTags:    "metergate,run,started",
		},
		{
			name: "validation failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyValidationFailed(context.Background(), "run-2", 3)
			},
			expectTitle:    "Metergate - Validation Failed",
			expectMessage:  "Run run-2 aborted: dataset has 3 integrity violations\nManual review required",
			expectTags:     "metergate,validation,failed",
			expectPriority: "high",
		},
		{
			name: "promotion accepted",
			notify: func(svc notifications.Service) error {
				return svc.NotifyPromotionDecision(context.Background(), "run-3", &gate.Decision{
					ShouldPromote: true,
					Justification: "all tracked metrics improved over the production baseline",
				})
			},
			expectTitle:    "Metergate - Model Promoted",
			expectMessage:  "Run run-3: all tracked metrics improved over the production baseline",
			expectTags:     "metergate,promotion,promoted",
			expectPriority: "high",
		},
		{
			name: "promotion rejected",
			notify: func(svc notifications.Service) error {
				return svc.NotifyPromotionDecision(context.Background(), "run-4", &gate.Decision{
					ShouldPromote: false,
					Justification: "iou regressed against the production baseline",
				})
			},
			expectTitle:   "Metergate - Promotion Rejected",
			expectMessage: "Run run-4: iou regressed against the production baseline",
			expectTags:    "metergate,promotion,rejected",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("registry unreachable"), "baseline fetch")
			},
			expectTitle:    "Metergate - Error",
			expectMessage:  "Error in baseline fetch: registry unreachable",
			expectTags:     "metergate,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for muted event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Validation = false
	cfg.Notifications.Training = false
	cfg.Notifications.Promotion = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyRunStarted(ctx, "run-1", 49); err != nil {
		t.Fatalf("muted run-started: %v", err)
	}
	if err := svc.NotifyValidationFailed(ctx, "run-1", 1); err != nil {
		t.Fatalf("muted validation: %v", err)
	}
	if err := svc.NotifyTrainingCompleted(ctx, "run-1", gate.MetricSet{"dice": 0.9}); err != nil {
		t.Fatalf("muted training: %v", err)
	}
	if err := svc.NotifyPromotionDecision(ctx, "run-1", &gate.Decision{ShouldPromote: true}); err != nil {
		t.Fatalf("muted promotion: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "stage"); err != nil {
		t.Fatalf("muted error: %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
