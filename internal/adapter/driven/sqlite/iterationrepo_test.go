package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

func makeIteration(projectID int64, number int, remoteID int64) model.Iteration {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	return model.Iteration{
		ProjectID: projectID,
		Number:    number,
		RemoteID:  remoteID,
		StartAt:   start,
		FinishAt:  start.AddDate(0, 0, 7),
	}
}

func TestIterationRepo_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	ctx := context.Background()
	p := seedProject(t, db, "Core")

	created, err := repo.Create(ctx, makeIteration(p.ID, 12, 9001))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.FindByRemoteID(ctx, p.ID, 9001)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 12, got.Number)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), got.StartAt)
	assert.Equal(t, "2026-03-09", got.FinishOn())
	assert.False(t, got.CreatedAt.IsZero())
}

func TestIterationRepo_FindByRemoteID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	p := seedProject(t, db, "Core")

	got, err := repo.FindByRemoteID(context.Background(), p.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIterationRepo_FindByRemoteID_ScopedToProject(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	ctx := context.Background()
	a := seedProject(t, db, "A")
	b := seedProject(t, db, "B")

	_, err := repo.Create(ctx, makeIteration(a.ID, 1, 500))
	require.NoError(t, err)

	got, err := repo.FindByRemoteID(ctx, b.ID, 500)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The same remote id may be recorded for a different project.
	_, err = repo.Create(ctx, makeIteration(b.ID, 1, 500))
	require.NoError(t, err)
}

func TestIterationRepo_Create_DuplicateRemoteID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	ctx := context.Background()
	p := seedProject(t, db, "Core")

	_, err := repo.Create(ctx, makeIteration(p.ID, 1, 500))
	require.NoError(t, err)

	_, err = repo.Create(ctx, makeIteration(p.ID, 2, 500))
	assert.ErrorIs(t, err, driven.ErrDuplicateKey)
}

func TestIterationRepo_Create_DuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	ctx := context.Background()
	p := seedProject(t, db, "Core")

	_, err := repo.Create(ctx, makeIteration(p.ID, 1, 500))
	require.NoError(t, err)

	_, err = repo.Create(ctx, makeIteration(p.ID, 1, 501))
	assert.ErrorIs(t, err, driven.ErrDuplicateKey)

	all, err := repo.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIterationRepo_ListAndCurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	ctx := context.Background()
	p := seedProject(t, db, "Core")

	current, err := repo.Current(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, current)

	for _, n := range []int{2, 3, 1} {
		seedIteration(t, db, p.ID, n)
	}

	all, err := repo.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].Number)
	assert.Equal(t, 2, all[1].Number)
	assert.Equal(t, 1, all[2].Number)

	current, err = repo.Current(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 3, current.Number)

	second, err := repo.GetByNumber(ctx, p.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(1002), second.RemoteID)

	missing, err := repo.GetByNumber(ctx, p.ID, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIterationRepo_ListByProject_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIterationRepo(db)
	p := seedProject(t, db, "Core")

	all, err := repo.ListByProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}
