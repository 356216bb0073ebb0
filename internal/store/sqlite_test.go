package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/model"
)

func open(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	last, err := s.LastRun(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, last)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.BeginRun(ctx, model.Run{ID: "r1", Kind: "sync", Root: "root", StartedAt: t0}))
	require.NoError(t, s.BeginRun(ctx, model.Run{ID: "r2", Kind: "sync", Root: "root", StartedAt: t0.Add(time.Hour)}))
	require.NoError(t, s.SetRunState(ctx, "r2", model.StateResolving, ""))
	require.NoError(t, s.SetRunState(ctx, "r2", model.StateDone, ""))
	require.Error(t, s.SetRunState(ctx, "nope", model.StateDone, ""))

	last, err = s.LastRun(ctx, "sync")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "r2", last.ID)
	assert.Equal(t, model.StateDone, last.State)
	assert.False(t, last.FinishedAt.IsZero())

	seed, err := s.LastRun(ctx, "seed")
	require.NoError(t, err)
	assert.Nil(t, seed)
}

func TestSQLite_StepsUpsert(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, model.Run{ID: "r1", Kind: "sync"}))
	require.NoError(t, s.RecordStep(ctx, model.Step{RunID: "r1", Name: "home", State: model.StepFailed, Error: "boom"}))
	require.NoError(t, s.RecordStep(ctx, model.Step{RunID: "r1", Name: "home", State: model.StepOK, Artifacts: 1}))
	require.NoError(t, s.RecordStep(ctx, model.Step{RunID: "r1", Name: "config", State: model.StepOK, Artifacts: 1}))

	steps, err := s.Steps(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "config", steps[0].Name)
	assert.Equal(t, "home", steps[1].Name)
	assert.Equal(t, model.StepOK, steps[1].State)
	assert.Empty(t, steps[1].Error)
}

func TestSQLite_StaleArtifacts(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.RecordArtifact(ctx, "r1", "collection:projects", "content/projects/alpha.md", "p1"))
	require.NoError(t, s.RecordArtifact(ctx, "r1", "collection:projects", "content/projects/beta.md", "p2"))
	require.NoError(t, s.RecordArtifact(ctx, "r1", "collection:blogs", "content/blogs/x.md", "p3"))
	require.NoError(t, s.RecordArtifact(ctx, "r1", "home", "data/home.json", "home"))

	// 第二次运行只写出了 alpha
	require.NoError(t, s.RecordArtifact(ctx, "r2", "collection:projects", "content/projects/alpha.md", "p1"))

	stale, err := s.StaleArtifacts(ctx, "collection:projects", "r2")
	require.NoError(t, err)
	assert.Equal(t, []string{"content/projects/beta.md"}, stale)

	scopes, err := s.Scopes(ctx, "collection:")
	require.NoError(t, err)
	assert.Equal(t, []string{"collection:blogs", "collection:projects"}, scopes)

	require.NoError(t, s.ForgetArtifact(ctx, "content/projects/beta.md"))
	stale, err = s.StaleArtifacts(ctx, "collection:projects", "r2")
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestSQLite_StatsAndReset(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, model.Run{ID: "r1", Kind: "sync"}))
	require.NoError(t, s.RecordArtifact(ctx, "r1", "home", "data/home.json", "home"))
	require.NoError(t, s.RecordAsset(ctx, "r1", "site-logo.png", "https://x/logo.png", "/images/site-logo.png", "image/png", 10, ""))
	require.NoError(t, s.RecordAsset(ctx, "r1", "content-b1.jpg", "https://x/b.jpg", "", "", 0, "http status: 404 Not Found"))
	require.Error(t, s.RecordAsset(ctx, "r1", "", "https://x", "", "", 0, ""))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 1, st.Artifacts)
	assert.Equal(t, 2, st.Assets)
	assert.Equal(t, 1, st.AssetsErr)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "r1", st.LastRun.ID)

	require.NoError(t, s.Reset(ctx))
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Runs+st.Artifacts+st.Assets)
	assert.Nil(t, st.LastRun)
}

func TestSQLite_CleanOldRuns(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, model.Run{ID: "old", Kind: "sync", StartedAt: time.Now().AddDate(0, 0, -30)}))
	require.NoError(t, s.RecordStep(ctx, model.Step{RunID: "old", Name: "home", State: model.StepOK}))
	require.NoError(t, s.BeginRun(ctx, model.Run{ID: "new", Kind: "sync"}))
	require.NoError(t, s.CleanOldRuns(ctx, 7))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Runs)
	steps, err := s.Steps(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, steps)
}
