package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-routing-api/internal/models"
	"github.com/noah-isme/case-routing-api/pkg/jobs"
)

type slaRunnerStub struct {
	mu    sync.Mutex
	runs  []time.Time
	fails int
}

func (r *slaRunnerStub) RunDailyUpdate(ctx context.Context, now time.Time) (*models.SLAUpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, now)
	if r.fails > 0 {
		r.fails--
		return nil, errors.New("lock timeout")
	}
	return &models.SLAUpdateResult{Ran: true, RunAt: now}, nil
}

func (r *slaRunnerStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

type dispatcherStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *dispatcherStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func newSchedulerFor(t *testing.T, runner slaRunner, now time.Time) *SLAScheduler {
	s, err := NewSLAScheduler(runner, SLASchedulerOptions{Location: london(t), RunHour: 22, RunMinute: 30}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func TestSLASchedulerNextRun(t *testing.T) {
	loc := london(t)
	s := newSchedulerFor(t, &slaRunnerStub{}, time.Now())

	assert.WithinDuration(t, time.Date(2024, 3, 4, 22, 30, 0, 0, loc), s.NextRun(time.Date(2024, 3, 4, 9, 0, 0, 0, loc)), 0)
	assert.WithinDuration(t, time.Date(2024, 3, 5, 22, 30, 0, 0, loc), s.NextRun(time.Date(2024, 3, 4, 22, 30, 0, 0, loc)), 0)

	// Clocks go forward on 31 March 2024; the run stays at 22:30 local time.
	next := s.NextRun(time.Date(2024, 3, 30, 23, 0, 0, 0, loc))
	assert.WithinDuration(t, time.Date(2024, 3, 31, 22, 30, 0, 0, loc), next, 0)
	assert.Equal(t, 21, next.UTC().Hour())
	assert.Equal(t, loc, next.Location())
}

func TestSLASchedulerRejectsInvalidSchedule(t *testing.T) {
	_, err := NewSLAScheduler(&slaRunnerStub{}, SLASchedulerOptions{RunHour: 25}, nil)
	require.Error(t, err)

	_, err = NewSLAScheduler(&slaRunnerStub{}, SLASchedulerOptions{Spec: "not a schedule"}, nil)
	require.Error(t, err)
}

func TestSLASchedulerDispatch(t *testing.T) {
	loc := london(t)
	s := newSchedulerFor(t, &slaRunnerStub{}, time.Now())
	at := time.Date(2024, 3, 4, 22, 30, 0, 0, loc)

	require.Error(t, s.Dispatch(at))

	queue := &dispatcherStub{}
	s.AttachQueue(queue)
	require.NoError(t, s.Dispatch(at))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, SLAJobType, queue.jobs[0].Type)
	assert.NotEmpty(t, queue.jobs[0].ID)
	assert.Equal(t, SLAJobPayload{Date: "2024-03-04"}, queue.jobs[0].Payload)
}

func TestSLASchedulerHandleJob(t *testing.T) {
	loc := london(t)
	now := time.Date(2024, 3, 4, 22, 31, 0, 0, loc)

	t.Run("runs for today", func(t *testing.T) {
		runner := &slaRunnerStub{}
		s := newSchedulerFor(t, runner, now)
		require.NoError(t, s.HandleJob(context.Background(), jobs.Job{ID: "j1", Payload: SLAJobPayload{Date: "2024-03-04"}}))
		require.Equal(t, 1, runner.count())
		assert.True(t, runner.runs[0].Equal(now))
	})

	t.Run("drops stale retries", func(t *testing.T) {
		runner := &slaRunnerStub{}
		s := newSchedulerFor(t, runner, now)
		require.NoError(t, s.HandleJob(context.Background(), jobs.Job{ID: "j1", Attempt: 2, Payload: SLAJobPayload{Date: "2024-03-03"}}))
		assert.Zero(t, runner.count())
	})

	t.Run("returns failures for retry", func(t *testing.T) {
		runner := &slaRunnerStub{fails: 1}
		s := newSchedulerFor(t, runner, now)
		require.Error(t, s.HandleJob(context.Background(), jobs.Job{ID: "j1", Payload: SLAJobPayload{Date: "2024-03-04"}}))
	})
}

func TestSLASchedulerRetriesThroughQueue(t *testing.T) {
	loc := london(t)
	runner := &slaRunnerStub{fails: 2}
	s := newSchedulerFor(t, runner, time.Date(2024, 3, 4, 22, 31, 0, 0, loc))

	q := jobs.NewQueue("sla", s.HandleJob, jobs.QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()
	s.AttachQueue(q)

	require.NoError(t, s.Dispatch(time.Date(2024, 3, 4, 22, 30, 0, 0, loc)))
	require.Eventually(t, func() bool { return runner.count() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestSLASchedulerRunDispatchesUntilCancelled(t *testing.T) {
	loc := london(t)
	s, err := NewSLAScheduler(&slaRunnerStub{}, SLASchedulerOptions{Location: loc, Spec: "@every 1s"}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 4, 22, 30, 0, 0, loc) }
	queue := &dispatcherStub{}
	s.AttachQueue(queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return queue.count() >= 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Equal(t, SLAJobPayload{Date: "2024-03-04"}, queue.jobs[0].Payload)
}
