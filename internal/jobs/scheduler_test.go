package jobs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/tasks"
)

type recordingQueue struct {
	tasks []tasks.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, task tasks.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func TestSchedulerEnqueuesIdleSweep(t *testing.T) {
	queue := &recordingQueue{}
	s := NewScheduler(queue, zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 1)

	s.enqueueIdleSweep()
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, tasks.TypeExpireSessions, queue.tasks[0].Type)
}

func TestSchedulerWithoutQueue(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
}
