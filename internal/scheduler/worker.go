package scheduler

import (
	"context"
	"fmt"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/hibiken/asynq"
)

// AlertNotifier delivers an internal error alert to the on-call channel.
type AlertNotifier interface {
	NotifyInternalError(ctx context.Context, payload InternalAlertPayload) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	notifier AlertNotifier
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, notifier AlertNotifier, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		notifier: notifier,
		log:      log,
	}
	w.mux.HandleFunc(TaskInternalAlert, w.handleInternalAlert)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("alert worker stopped", "error", err)
	}
}

func (w *Worker) handleInternalAlert(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInternalAlertPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if w.notifier == nil {
		w.log.Warn("internal error alert dropped, no notifier", "trace_id", payload.TraceID)
		return nil
	}
	return w.notifier.NotifyInternalError(ctx, payload)
}
