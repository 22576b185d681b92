package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.calls.Add(1)
	if j.started != nil {
		j.started <- struct{}{}
		<-j.release
	}
	return j.err
}

func TestCronSchedulerAddJob(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{}

	require.NoError(t, s.AddJob(job, "@every 10m"))
	_, ok := s.Next(job.Name())
	require.True(t, ok)
	require.Error(t, s.AddJob(job, "*/5 * * * *"))
	require.Error(t, s.AddJob(&namedJob{name: "bad"}, "not a spec"))

	_, ok = s.Next("missing")
	require.False(t, ok)
}

func TestCronSchedulerWrapSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	run := s.wrap(job, "@every 1m")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		run()
	}()
	<-job.started
	run()
	close(job.release)
	wg.Wait()
	require.Equal(t, int32(1), job.calls.Load())
}

func TestCronSchedulerWrapReportsErrors(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{err: errors.New("boom")}
	run := s.wrap(job, "@every 1m")
	run()
	run()
	require.Equal(t, int32(2), job.calls.Load())
}

type namedJob struct {
	name string
}

func (j *namedJob) Name() string                  { return j.name }
func (j *namedJob) Run(ctx context.Context) error { return nil }
