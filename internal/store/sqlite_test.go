package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennettoxford/dmdwatch/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteRecordAndListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id, err := s.RecordRun(ctx, model.Run{
		Version:  "202503.4.0",
		Mode:     model.ModeAuto,
		Active:   10,
		Inactive: 2,
		Unknown:  1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "202503.4.0", runs[0].Version)
	assert.Equal(t, model.ModeAuto, runs[0].Mode)
	assert.Equal(t, 10, runs[0].Active)
	assert.Equal(t, 2, runs[0].Inactive)
	assert.Equal(t, 1, runs[0].Unknown)
	assert.Equal(t, 0, runs[0].Unreachable)
	assert.True(t, runs[0].HasProblems())
}

func TestSQLiteListRunsNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, version := range []string{"202501.1.0", "202502.2.0", "202503.4.0"} {
		_, err := s.RecordRun(ctx, model.Run{
			Version:   version,
			Mode:      model.ModeForce,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "202503.4.0", runs[0].Version)
	assert.Equal(t, "202502.2.0", runs[1].Version)
}

func TestSQLiteRecordRunKeepsExplicitID(t *testing.T) {
	s := newTestSQLite(t)

	id, err := s.RecordRun(context.Background(), model.Run{
		ID:      "run-1",
		Version: "202503.4.0",
		Mode:    model.ModeAuto,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
}

func TestSQLiteListRunsEmpty(t *testing.T) {
	s := newTestSQLite(t)

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}
