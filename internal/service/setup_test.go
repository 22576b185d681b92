package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/notify"
	"github.com/xxxsen/coauthor/internal/repo/memory"
	"github.com/xxxsen/coauthor/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(eventType string) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Event, 0)
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingMetrics struct {
	mu            sync.Mutex
	creates       int
	appends       map[string]int
	conflicts     map[string]int
	collaborators map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		appends:       map[string]int{},
		conflicts:     map[string]int{},
		collaborators: map[string]int{},
	}
}

func (m *recordingMetrics) RecordCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
}

func (m *recordingMetrics) RecordAppend(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends[op]++
}

func (m *recordingMetrics) RecordConflict(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[op]++
}

func (m *recordingMetrics) RecordCollaboratorChange(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collaborators[op]++
}

func (m *recordingMetrics) RecordInconsistencies(count int) {}

var _ metrics.Recorder = (*recordingMetrics)(nil)

type testEnv struct {
	store     *memory.Store
	versions  *service.VersionStore
	collab    *service.CollaborationService
	articles  *service.ArticleService
	publisher *recordingPublisher
	metrics   *recordingMetrics

	alice *model.User
	bob   *model.User
	carol *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	env := &testEnv{
		store:     store,
		publisher: &recordingPublisher{},
		metrics:   newRecordingMetrics(),
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		user, err := store.AddUser(model.User{Username: name, Email: name + "@example.com"})
		require.NoError(t, err)
		switch name {
		case "alice":
			env.alice = user
		case "bob":
			env.bob = user
		case "carol":
			env.carol = user
		}
	}
	env.versions = service.NewVersionStore(store, store)
	env.collab = service.NewCollaborationService(store, store, store, env.publisher, env.metrics)
	env.articles = service.NewArticleService(env.versions, env.collab, store, env.publisher, env.metrics)
	return env
}

func (e *testEnv) requireConsistent(t *testing.T) {
	t.Helper()
	issues, err := e.store.CheckConsistency(context.Background())
	require.NoError(t, err)
	require.Empty(t, issues)
}
