package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"hcadmin/internal/tasks"
)

// Enqueuer appends a task to the maintenance stream.
type Enqueuer interface {
	Enqueue(ctx context.Context, task tasks.Task) error
}

// StreamEnqueuer writes tasks to a Redis stream read by cmd/worker.
type StreamEnqueuer struct {
	client *redis.Client
	stream string
}

func NewStreamEnqueuer(client *redis.Client, stream string) *StreamEnqueuer {
	return &StreamEnqueuer{client: client, stream: stream}
}

func (e *StreamEnqueuer) Enqueue(ctx context.Context, task tasks.Task) error {
	_, err := e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		MaxLen: 10000,
		Approx: true,
		Values: task.Values(),
	}).Result()
	return err
}

type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	log   zerolog.Logger
}

func NewScheduler(queue Enqueuer, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: queue,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 */15 * * * *", s.enqueueIdleSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueIdleSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(ctx, tasks.Task{Type: tasks.TypeExpireSessions}); err != nil {
		s.log.Error().Err(err).Msg("enqueue session sweep failed")
	}
}
