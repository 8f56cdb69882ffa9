package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscience/research-graph-service/internal/domain"
)

func completedRunFixture(t *testing.T) *domain.Run {
	t.Helper()

	run := domain.NewRun("robotics at ETH Zurich", nil, 15)
	run.Status = domain.RunStatusCompleted
	run.UpsertStep(domain.StepRecord{
		Name:   domain.StageFilters,
		Status: domain.StepStatusDone,
		Detail: map[string]interface{}{"kind": "parsed"},
	})

	graph := domain.NewGraph()
	graph.AddNode(&domain.Node{ID: domain.UserNodeID, Type: domain.NodeTypeUser, Label: "You"})
	run.GraphData = graph

	return run
}

func TestPgRunRepository_Save(t *testing.T) {
	t.Run("inserts completed run", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		ctx := context.Background()
		run := completedRunFixture(t)

		mock.ExpectExec(`INSERT INTO runs`).
			WithArgs(
				run.ID, run.Query, run.CVID, run.MaxNodes, run.Status,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				run.CreatedAt, run.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Save(ctx, run)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil run", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)

		err = repo.Save(context.Background(), nil)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects run without ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		run := completedRunFixture(t)
		run.ID = uuid.Nil

		err = repo.Save(context.Background(), run)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects run with blank query", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		run := completedRunFixture(t)
		run.Query = "   "

		err = repo.Save(context.Background(), run)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("wraps database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		run := completedRunFixture(t)

		mock.ExpectExec(`INSERT INTO runs`).
			WithArgs(
				run.ID, run.Query, run.CVID, run.MaxNodes, run.Status,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				run.CreatedAt, run.UpdatedAt,
			).
			WillReturnError(errors.New("connection lost"))

		err = repo.Save(context.Background(), run)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save run")
	})
}

func TestPgRunRepository_GetByID(t *testing.T) {
	runColumns := []string{
		"id", "query", "cv_id", "max_nodes", "status",
		"steps", "graph_data", "error",
		"created_at", "updated_at",
	}

	t.Run("returns run with steps and graph", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		ctx := context.Background()

		fixture := completedRunFixture(t)
		stepsJSON, err := json.Marshal(fixture.Steps)
		require.NoError(t, err)
		graphJSON, err := json.Marshal(fixture.GraphData)
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT id, query, cv_id, max_nodes, status`).
			WithArgs(fixture.ID).
			WillReturnRows(pgxmock.NewRows(runColumns).AddRow(
				fixture.ID, fixture.Query, nil, fixture.MaxNodes, fixture.Status,
				stepsJSON, graphJSON, nil,
				fixture.CreatedAt, fixture.UpdatedAt,
			))

		result, err := repo.GetByID(ctx, fixture.ID)
		require.NoError(t, err)
		assert.Equal(t, fixture.ID, result.ID)
		assert.Equal(t, domain.RunStatusCompleted, result.Status)
		require.Len(t, result.Steps, 1)
		assert.Equal(t, domain.StageFilters, result.Steps[0].Name)
		require.NotNil(t, result.GraphData)
		assert.Contains(t, result.GraphData.Nodes, domain.UserNodeID)
		assert.Empty(t, result.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns failed run without graph", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		ctx := context.Background()

		id := uuid.New()
		errMsg := "filters: service unavailable"
		now := time.Now().UTC()

		mock.ExpectQuery(`SELECT id, query, cv_id, max_nodes, status`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(runColumns).AddRow(
				id, "quantum computing", nil, 10, domain.RunStatusFailed,
				[]byte(`[]`), nil, &errMsg,
				now, now,
			))

		result, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusFailed, result.Status)
		assert.Nil(t, result.GraphData)
		assert.Equal(t, errMsg, result.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		id := uuid.New()

		mock.ExpectQuery(`SELECT id, query, cv_id, max_nodes, status`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByID(context.Background(), id)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRunRepository_List(t *testing.T) {
	runColumns := []string{
		"id", "query", "cv_id", "max_nodes", "status",
		"steps", "graph_data", "error",
		"created_at", "updated_at",
	}

	t.Run("lists runs without filters", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		ctx := context.Background()

		now := time.Now().UTC()
		id1 := uuid.New()
		id2 := uuid.New()

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM runs`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

		mock.ExpectQuery(`SELECT id, query, cv_id, max_nodes, status`).
			WithArgs(100, 0).
			WillReturnRows(pgxmock.NewRows(runColumns).
				AddRow(id1, "robotics", nil, 15, domain.RunStatusCompleted,
					[]byte(`[]`), nil, nil, now, now).
				AddRow(id2, "photonics", nil, 15, domain.RunStatusFailed,
					[]byte(`[]`), nil, nil, now.Add(-time.Hour), now.Add(-time.Hour)))

		runs, total, err := repo.List(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, runs, 2)
		assert.Equal(t, id1, runs[0].ID)
		assert.Equal(t, id2, runs[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		ctx := context.Background()

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM runs`).
			WithArgs(domain.RunStatusCompleted).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		mock.ExpectQuery(`SELECT id, query, cv_id, max_nodes, status`).
			WithArgs(domain.RunStatusCompleted, 100, 0).
			WillReturnRows(pgxmock.NewRows(runColumns))

		runs, total, err := repo.List(ctx, RunFilter{
			Status: []domain.RunStatus{domain.RunStatusCompleted},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, runs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clamps pagination values", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		ctx := context.Background()

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM runs`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		mock.ExpectQuery(`SELECT id, query, cv_id, max_nodes, status`).
			WithArgs(1000, 0).
			WillReturnRows(pgxmock.NewRows(runColumns))

		_, _, err = repo.List(ctx, RunFilter{Limit: 5000, Offset: -3})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRunRepository_Delete(t *testing.T) {
	t.Run("deletes existing run", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		id := uuid.New()

		mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err = repo.Delete(context.Background(), id)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing run", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRunRepository(mock)
		id := uuid.New()

		mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.Delete(context.Background(), id)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
