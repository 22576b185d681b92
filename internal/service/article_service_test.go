package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coauthor/internal/attribution"
	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/notify"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/service"
)

func TestArticleLifecycleScenarios(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "T"})
	require.NoError(t, err)
	require.Equal(t, 1, article.CurrentVersion)

	first, err := env.articles.GetVersion(ctx, article.ID, env.alice.ID, 1)
	require.NoError(t, err)
	require.Equal(t, "Initial version", first.Note)
	require.Equal(t, "alice", first.UserName)

	saved, v2, err := env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: 1, Title: "T2", Content: "body"})
	require.NoError(t, err)
	require.Equal(t, 2, v2.VersionNumber)
	require.Equal(t, 2, saved.CurrentVersion)
	require.Equal(t, "body", saved.Content)
	require.Equal(t, "T2", saved.Title)

	_, _, err = env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: 1, Title: "T3", Content: "stale"})
	require.ErrorIs(t, err, appErr.ErrVersionConflict)
	head, err := env.articles.Get(ctx, article.ID, env.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, head.CurrentVersion)
	require.Equal(t, "body", head.Content)

	restored, err := env.articles.RestoreVersion(ctx, article.ID, env.alice.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 3, restored.VersionNumber)
	require.Equal(t, "", restored.Content)
	require.Equal(t, "T2", restored.Title)
	require.Equal(t, "Restored from version 1", restored.Note)

	head, err = env.articles.Get(ctx, article.ID, env.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 3, head.CurrentVersion)
	require.Equal(t, "", head.Content)

	versions, err := env.articles.ListVersions(ctx, article.ID, env.alice.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		require.Equal(t, i+1, v.VersionNumber)
	}
	require.Equal(t, "body", versions[1].Content)

	env.requireConsistent(t)
	require.Equal(t, 1, env.metrics.creates)
	require.Equal(t, 1, env.metrics.appends[metrics.OpSave])
	require.Equal(t, 1, env.metrics.appends[metrics.OpRestore])
	require.Equal(t, 1, env.metrics.conflicts[metrics.OpSave])
}

func TestSaveConcurrentWritersOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "race"})
	require.NoError(t, err)
	require.NoError(t, env.collab.AddCollaborator(ctx, article.ID, env.alice.ID, env.bob.ID))

	const writers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		other     []error
	)
	for i := 0; i < writers; i++ {
		caller := env.alice.ID
		if i%2 == 1 {
			caller = env.bob.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.articles.Save(ctx, article.ID, caller, service.SaveInput{ClientVersion: 1, Title: "race", Content: "x"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appErr.ErrVersionConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()
	require.Empty(t, other)
	require.Equal(t, 1, successes)
	require.Equal(t, writers-1, conflicts)

	versions, err := env.versions.ListVersions(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	env.requireConsistent(t)
}

func TestSaveValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "  "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "ok"})
	require.NoError(t, err)

	_, _, err = env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: 1, Title: ""})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, _, err = env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: 0, Title: "ok"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, _, err = env.articles.Save(ctx, 9999, env.alice.ID, service.SaveInput{ClientVersion: 1, Title: "ok"})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	head, err := env.articles.Get(ctx, article.ID, env.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, head.CurrentVersion)
}

func TestSaveTogglesVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "vis"})
	require.NoError(t, err)
	_, err = env.articles.Get(ctx, article.ID, env.carol.ID)
	require.ErrorIs(t, err, appErr.ErrForbidden)

	public := true
	saved, _, err := env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: 1, Title: "vis", IsPublic: &public})
	require.NoError(t, err)
	require.True(t, saved.IsPublic)

	got, err := env.articles.Get(ctx, article.ID, env.carol.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.CurrentVersion)

	_, _, err = env.articles.Save(ctx, article.ID, env.carol.ID, service.SaveInput{ClientVersion: 2, Title: "vis"})
	require.ErrorIs(t, err, appErr.ErrForbidden)

	listed, err := env.articles.List(ctx, env.carol.ID, true)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	mine, err := env.articles.List(ctx, env.carol.ID, false)
	require.NoError(t, err)
	require.Empty(t, mine)
}

func TestRestoreMissingTargetLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "r", Content: "one"})
	require.NoError(t, err)

	_, err = env.articles.RestoreVersion(ctx, article.ID, env.alice.ID, 5)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = env.articles.RestoreVersion(ctx, article.ID, env.alice.ID, 0)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = env.articles.RestoreVersion(ctx, article.ID, env.bob.ID, 1)
	require.ErrorIs(t, err, appErr.ErrForbidden)

	versions, err := env.versions.ListVersions(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestRestoreCopiesPreRestoreContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "r", Content: "one"})
	require.NoError(t, err)
	for i, body := range []string{"two", "three"} {
		_, _, err := env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: i + 1, Title: "r", Content: body})
		require.NoError(t, err)
	}
	before, err := env.versions.GetVersion(ctx, article.ID, 2)
	require.NoError(t, err)

	restored, err := env.articles.RestoreVersion(ctx, article.ID, env.alice.ID, 2)
	require.NoError(t, err)
	require.Equal(t, before.Content, restored.Content)
	require.Equal(t, 4, restored.VersionNumber)

	after, err := env.versions.GetVersion(ctx, article.ID, 2)
	require.NoError(t, err)
	require.Equal(t, before, after)
	env.requireConsistent(t)
}

func TestGetVersionEdges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "e"})
	require.NoError(t, err)

	_, err = env.articles.GetVersion(ctx, article.ID, env.alice.ID, 0)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = env.articles.GetVersion(ctx, article.ID, env.alice.ID, 2)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = env.articles.ListVersions(ctx, 12345, env.alice.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSaveNotifiesOtherMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "n"})
	require.NoError(t, err)
	require.NoError(t, env.collab.AddCollaborator(ctx, article.ID, env.alice.ID, env.bob.ID))

	_, _, err = env.articles.Save(ctx, article.ID, env.bob.ID, service.SaveInput{ClientVersion: 1, Title: "n", Content: "hi"})
	require.NoError(t, err)

	events := env.publisher.ofType(notify.EventVersionAppended)
	require.Len(t, events, 1)
	require.Equal(t, []int64{env.alice.ID}, events[0].Recipients)
	require.Equal(t, env.bob.ID, events[0].ActorID)
	require.Equal(t, 2, events[0].Version)
	require.Equal(t, article.ID, events[0].ArticleID)

	require.Len(t, env.publisher.ofType(notify.EventArticleCreated), 1)
}

func TestPublishFailureDoesNotFailSave(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker down")
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "p"})
	require.NoError(t, err)
	require.NoError(t, env.collab.AddCollaborator(ctx, article.ID, env.alice.ID, env.bob.ID))
	_, _, err = env.articles.Save(ctx, article.ID, env.alice.ID, service.SaveInput{ClientVersion: 1, Title: "p"})
	require.NoError(t, err)
}

func TestAttribution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "a", Content: "[alice - 10:00]\nHello"})
	require.NoError(t, err)
	require.NoError(t, env.collab.AddCollaborator(ctx, article.ID, env.alice.ID, env.bob.ID))

	_, _, err = env.articles.Save(ctx, article.ID, env.bob.ID, service.SaveInput{
		ClientVersion: 1,
		Title:         "a",
		Content:       "[alice - 10:00]\nHello\n\n[bob - 10:05]\nWorld\n[carol - 10:06]\nstranger",
	})
	require.NoError(t, err)

	segments, err := env.articles.Attribution(ctx, article.ID, env.alice.ID, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segments), 2)
	require.Equal(t, "alice", segments[0].Author.Username)
	require.Equal(t, "Hello", segments[0].Text)
	require.Equal(t, attribution.Color(env.alice.ID), segments[0].Color)
	require.Equal(t, "bob", segments[1].Author.Username)
	require.Contains(t, segments[1].Text, "World")

	old, err := env.articles.Attribution(ctx, article.ID, env.bob.ID, 1)
	require.NoError(t, err)
	require.Len(t, old, 1)
	require.Equal(t, "Hello", old[0].Text)

	_, err = env.articles.Attribution(ctx, article.ID, env.carol.ID, 0)
	require.ErrorIs(t, err, appErr.ErrForbidden)
	_, err = env.articles.Attribution(ctx, article.ID, env.alice.ID, 7)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestAttributionEmptyContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.alice.ID, service.CreateInput{Title: "empty"})
	require.NoError(t, err)
	segments, err := env.articles.Attribution(ctx, article.ID, env.alice.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, segments)
	require.Empty(t, segments)
}

func TestCompose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.articles.Compose(ctx, env.bob.ID, service.ComposeInput{Content: "", Text: "hi", Mode: service.ComposeAppend})
	require.NoError(t, err)
	tag, ok := attribution.ParseTagLine(out[:len(out)-len("hi")-1])
	require.True(t, ok)
	require.Equal(t, "bob", tag.Name)
	require.True(t, len(out) > len("hi"))

	cont, err := env.articles.Compose(ctx, env.bob.ID, service.ComposeInput{Content: "[alice - x]\nHello", Mode: service.ComposeContinue})
	require.NoError(t, err)
	require.Contains(t, cont, "[bob - ")

	_, err = env.articles.Compose(ctx, env.bob.ID, service.ComposeInput{Text: " ", Mode: service.ComposeAppend})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = env.articles.Compose(ctx, env.bob.ID, service.ComposeInput{Text: "x", Mode: "rewrite"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = env.articles.Compose(ctx, 999, service.ComposeInput{Text: "x"})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
