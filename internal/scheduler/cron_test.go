package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/updown-rounds/internal/scheduler"
)

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Run(context.Context) scheduler.Result {
	j.runs.Add(1)
	return scheduler.Result{Success: false, Message: "simulated failure"}
}

func TestRunner_TicksJob(t *testing.T) {
	r := scheduler.NewRunner(zaptest.NewLogger(t), context.Background())
	job := &countingJob{}

	_, err := r.Schedule("* * * * * *", job)
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunner_RejectsInvalidSpec(t *testing.T) {
	r := scheduler.NewRunner(zaptest.NewLogger(t), context.Background())
	_, err := r.Schedule("every now and then", &countingJob{})
	assert.Error(t, err)
}
