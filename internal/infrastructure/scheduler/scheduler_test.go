package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
	err      error
}

func (l *fakeLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		l.released++
		return nil
	}, true, nil
}

func newTestScheduler(locker Locker) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		TickInterval:  5 * time.Millisecond,
		EnableMetrics: true,
		Locker:        locker,
	})
}

func TestRegister_Validation(t *testing.T) {
	s := newTestScheduler(nil)

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)
	require.NoError(t, s.Register(&countingJob{name: "a"}, Every(time.Second)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, Every(time.Second)), ErrJobAlreadyExists)

	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.Unregister("missing"), ErrJobNotFound)
	require.NoError(t, s.Unregister("a"))
	assert.Empty(t, s.ListJobs())
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := newTestScheduler(nil)
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.False(t, s.IsRunning())

	info, err := s.GetJobInfo("tick")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.RunCount, int64(2))
	assert.Zero(t, info.FailCount)
	assert.Equal(t, "@every 10ms", info.Schedule)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := newTestScheduler(nil)
	job := &countingJob{name: "off"}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))
	require.NoError(t, s.DisableJob("off"))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
}

func TestRunNow_RecordsFailuresAndPanics(t *testing.T) {
	s := newTestScheduler(nil)
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	panicking := &countingJob{name: "panicking", panic: true}
	require.NoError(t, s.Register(failing, Every(time.Hour)))
	require.NoError(t, s.Register(panicking, Every(time.Hour)))

	var completed []string
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r.JobName) })

	res, err := s.RunNow(context.Background(), "failing")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "panicking")
	assert.ErrorIs(t, err, ErrJobPanic)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Equal(t, []string{"failing", "panicking"}, completed)
	assert.Len(t, s.GetHistory(0), 2)
	assert.Len(t, s.GetHistory(1), 1)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(2), snap.TotalFailures)
	assert.Equal(t, int64(1), snap.FailuresByJob["failing"])
}

func TestScheduler_SkipsWhenLeaseHeldElsewhere(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{"leased": true}}
	s := newTestScheduler(locker)
	job := &countingJob{name: "leased"}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		info, _ := s.GetJobInfo("leased")
		return info.LastResult != nil
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
	info, _ := s.GetJobInfo("leased")
	assert.True(t, info.LastResult.Skipped)
	assert.Zero(t, info.RunCount)
}

func TestScheduler_ReleasesLeaseAfterRun(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	s := newTestScheduler(locker)
	job := &countingJob{name: "leased"}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.held)
	assert.GreaterOrEqual(t, locker.released, 1)
}

func TestScheduler_LockerErrorFailsRun(t *testing.T) {
	s := newTestScheduler(&fakeLocker{held: map[string]bool{}, err: errors.New("redis down")})
	job := &countingJob{name: "j"}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		info, _ := s.GetJobInfo("j")
		return info.FailCount >= 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
	info, _ := s.GetJobInfo("j")
	assert.ErrorIs(t, info.LastResult.Error, ErrLockUnavailable)
}

func TestIntervalSchedule(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s := &IntervalSchedule{Interval: time.Minute, InitialDelay: 5 * time.Second}
	assert.Equal(t, base.Add(5*time.Second), s.Next(base))
	assert.Equal(t, base.Add(time.Minute), s.Next(base))

	assert.Equal(t, time.Minute, Every(0).Interval)
}
