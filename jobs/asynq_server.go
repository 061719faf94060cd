package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	jobmetrics "github.com/cothk/planning/internal/jobs"
	"github.com/cothk/planning/internal/provision"
)

// Worker wraps the Asynq server processing background tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
// Registerer receives the job collectors; when nil the default Prometheus
// registerer is used.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Provisioner Provisioner
	Registerer  prometheus.Registerer
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		// Provisioning must stay strictly sequential so each create-account
		// call's session side effect can be repaired before the next one.
		Concurrency: 1,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	if cfg.Provisioner != nil {
		metrics := jobmetrics.NewMetrics(cfg.Registerer)
		mux.HandleFunc(TaskTypeProvisionAccounts, NewProvisionAccountsHandler(cfg.Provisioner, cfg.Logger, metrics))
	}
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueProvision enqueues a bulk provisioning run. The returned function
// satisfies provision.EnqueueFunc.
func (c *Client) EnqueueProvision() provision.EnqueueFunc {
	return func(ctx context.Context, adminEmail string) error {
		task, err := NewProvisionAccountsTask(ProvisionAccountsPayload{AdminEmail: adminEmail})
		if err != nil {
			return err
		}
		_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
		return err
	}
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
