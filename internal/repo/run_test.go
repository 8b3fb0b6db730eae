package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

func TestRunRepo_CreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		ctx := context.Background()
		created := mustCreateRun(t, r, baseTime)

		got, err := r.runs.GetByID(ctx, created.ID)

		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "v1", got.RuleVersion)
		assert.Equal(t, "test.csv", got.Source)
		assert.Equal(t, domain.RunRunning, got.Status)
		assert.True(t, got.StartedAt.Equal(baseTime), "StartedAt mismatch: %s", got.StartedAt)
		assert.Nil(t, got.FinishedAt)
	})
}

func TestRunRepo_Create_DefaultsIDAndStart(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		got, err := r.runs.Create(context.Background(), domain.Run{RuleVersion: "v1", Status: domain.RunRunning})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.False(t, got.StartedAt.IsZero())
	})
}

func TestRunRepo_GetByID_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		_, err := r.runs.GetByID(context.Background(), uuid.New())

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRunRepo_Finish(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		ctx := context.Background()
		run := mustCreateRun(t, r, baseTime)
		finished := baseTime.Add(time.Minute)

		run.Status = domain.RunCompleted
		run.TotalRows, run.AcceptedRows, run.ExcludedRows = 10, 7, 3
		run.FinishedAt = &finished
		got, err := r.runs.Finish(ctx, run)

		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, got.Status)
		assert.Equal(t, 10, got.TotalRows)
		assert.Equal(t, 7, got.AcceptedRows)
		assert.Equal(t, 3, got.ExcludedRows)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, got.FinishedAt.Equal(finished))
	})
}

func TestRunRepo_Finish_Failed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		run := mustCreateRun(t, r, baseTime)

		run.Status = domain.RunFailed
		run.Error = "read: unexpected EOF"
		got, err := r.runs.Finish(context.Background(), run)

		require.NoError(t, err)
		assert.Equal(t, domain.RunFailed, got.Status)
		assert.Equal(t, "read: unexpected EOF", got.Error)
		assert.NotNil(t, got.FinishedAt)
	})
}

func TestRunRepo_Finish_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		_, err := r.runs.Finish(context.Background(), domain.Run{ID: uuid.New(), Status: domain.RunFailed})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRunRepo_ListPaged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r repos) {
		ctx := context.Background()
		oldest := mustCreateRun(t, r, baseTime)
		middle := mustCreateRun(t, r, baseTime.Add(time.Hour))
		newest := mustCreateRun(t, r, baseTime.Add(2*time.Hour))

		page1, total, err := r.runs.ListPaged(ctx, domain.PaginationParams{Page: 1, PerPage: 2})
		require.NoError(t, err)
		page2, _, err := r.runs.ListPaged(ctx, domain.PaginationParams{Page: 2, PerPage: 2})
		require.NoError(t, err)

		assert.Equal(t, int64(3), total)
		require.Len(t, page1, 2)
		assert.Equal(t, newest.ID, page1[0].ID)
		assert.Equal(t, middle.ID, page1[1].ID)
		require.Len(t, page2, 1)
		assert.Equal(t, oldest.ID, page2[0].ID)
	})
}
