// Package jobs defines the background task types and the Asynq worker that
// processes them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cothk/planning/internal/jobs"
	"github.com/cothk/planning/internal/provision"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeProvisionAccounts runs a bulk account provisioning batch.
	TaskTypeProvisionAccounts = "accounts:provision"
)

// ProvisionAccountsPayload carries the parameters of a provisioning run.
type ProvisionAccountsPayload struct {
	AdminEmail string `json:"admin_email"`
}

// NewProvisionAccountsTask constructs an Asynq task.
func NewProvisionAccountsTask(payload ProvisionAccountsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProvisionAccounts, data), nil
}

// Provisioner is the provisioning service consumed by the worker.
type Provisioner interface {
	Run(ctx context.Context, adminEmail string) (provision.Summary, error)
}

// NewProvisionAccountsHandler processes TaskTypeProvisionAccounts tasks and
// records run counts, durations and per-outcome account totals on the given
// metrics set.
func NewProvisionAccountsHandler(svc Provisioner, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ProvisionAccountsPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskTypeProvisionAccounts)
		summary, err := svc.Run(ctx, payload.AdminEmail)
		if err != nil {
			logger.Error("provisioning batch", slog.Any("error", err))
			return tracker.End(err)
		}
		_ = tracker.End(nil)
		metrics.AddAccounts(string(provision.OutcomeCreated), summary.Created)
		metrics.AddAccounts(string(provision.OutcomeExists), summary.Existing)
		metrics.AddAccounts(string(provision.OutcomeError), summary.Errors)
		logger.Info("provisioning batch done",
			slog.Int("created", summary.Created),
			slog.Int("existing", summary.Existing),
			slog.Int("errors", summary.Errors),
			slog.Int("total", summary.Total))
		return nil
	}
}
