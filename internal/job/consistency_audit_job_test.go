package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/repo/memory"
	"github.com/xxxsen/coauthor/internal/schedule"
)

type stubChecker struct {
	issues []model.Inconsistency
	err    error
}

func (s stubChecker) CheckConsistency(ctx context.Context) ([]model.Inconsistency, error) {
	return s.issues, s.err
}

type gaugeRecorder struct {
	metrics.Recorder
	last  int
	calls int
}

func (g *gaugeRecorder) RecordInconsistencies(count int) {
	g.last = count
	g.calls++
}

var _ schedule.Job = (*ConsistencyAuditJob)(nil)

func TestConsistencyAuditJobRecordsIssues(t *testing.T) {
	recorder := &gaugeRecorder{Recorder: metrics.NewNoop()}
	job := NewConsistencyAuditJob(stubChecker{issues: []model.Inconsistency{
		{ArticleID: 1, CurrentVersion: 3, MaxVersion: 2, VersionCount: 2},
		{ArticleID: 4, CurrentVersion: 1, MaxVersion: 1, VersionCount: 1},
	}}, recorder)

	require.Equal(t, "consistency_audit", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 2, recorder.last)

	job = NewConsistencyAuditJob(stubChecker{}, recorder)
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 0, recorder.last)
	require.Equal(t, 2, recorder.calls)
}

func TestConsistencyAuditJobPropagatesErrors(t *testing.T) {
	job := NewConsistencyAuditJob(stubChecker{err: errors.New("db down")}, nil)
	require.Error(t, job.Run(context.Background()))
	require.NoError(t, NewConsistencyAuditJob(nil, nil).Run(context.Background()))
}

func TestConsistencyAuditJobOnMemoryStore(t *testing.T) {
	store := memory.New()
	job := NewConsistencyAuditJob(store, nil)
	require.NoError(t, job.Run(context.Background()))
}
