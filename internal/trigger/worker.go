package trigger

import (
	"context"
	"fmt"

	"receipt_ingest_backend/platform/config"
	"receipt_ingest_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Waker is the scheduler surface the worker pokes.
type Waker interface {
	Wake()
}

// Worker consumes wake signals and pokes the claim scheduler.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	waker  Waker
	log    *logger.Logger
}

// NewWorker creates the trigger worker.
func NewWorker(cfg config.TriggerConfig, waker Waker, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetTriggerQueueName()
	if queue == "" {
		queue = "default"
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		waker:  waker,
		log:    log,
	}

	mux.HandleFunc(TaskProcessDue, w.handleProcessDue)

	return w, nil
}

func (w *Worker) handleProcessDue(_ context.Context, _ *asynq.Task) error {
	w.log.Debug("wake signal received")
	w.waker.Wake()
	return nil
}

// Run serves wake signals until Shutdown is called.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}
