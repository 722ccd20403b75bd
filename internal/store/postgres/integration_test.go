//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/store"
	"github.com/emperorhan/revision-indexer/internal/store/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniquePage keeps runs against a shared TEST_DB_URL from colliding.
func uniquePage() int64 {
	return int64(uuid.New().ID())
}

func seedHistory(t *testing.T, repo *postgres.RevisionRepo, pageID, firstID int64, start time.Time, digests ...string) []model.Revision {
	t.Helper()
	revs := make([]model.Revision, len(digests))
	for i, d := range digests {
		revs[i] = model.Revision{
			ID:          firstID + int64(i),
			PageID:      pageID,
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Fingerprint: model.NewFingerprint(d),
		}
	}
	n, err := repo.BulkUpsert(context.Background(), revs)
	require.NoError(t, err)
	require.Equal(t, len(revs), n)
	return revs
}

func TestRevisionRepo_RoundTrip(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewRevisionRepo(db)
	ctx := context.Background()
	page := uniquePage()
	firstID := page * 100
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)

	seedHistory(t, repo, page, firstID, start, "aaa", "bbb", "", "aaa", "ccc")

	rev, err := repo.FetchOne(ctx, firstID+2)
	require.NoError(t, err)
	assert.Equal(t, page, rev.PageID)
	assert.True(t, rev.Fingerprint.IsIndeterminate())
	assert.True(t, rev.Timestamp.Equal(start.Add(2*time.Hour)))

	_, err = repo.FetchOne(ctx, firstID+99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevisionRepo_FetchOlderDescending(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewRevisionRepo(db)
	ctx := context.Background()
	page := uniquePage()
	firstID := page * 100
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)

	seedHistory(t, repo, page, firstID, start, "a", "b", "c", "d", "e")

	revs, err := repo.FetchOlder(ctx, page, firstID+4, 3)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, firstID+3, revs[0].ID)
	assert.Equal(t, firstID+2, revs[1].ID)
	assert.Equal(t, firstID+1, revs[2].ID)
}

func TestRevisionRepo_FetchNewerHonoursTimeBound(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewRevisionRepo(db)
	ctx := context.Background()
	page := uniquePage()
	firstID := page * 100
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)

	seedHistory(t, repo, page, firstID, start, "a", "b", "c", "d", "e")

	revs, err := repo.FetchNewer(ctx, page, firstID, 10, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, firstID+1, revs[0].ID)
	assert.Equal(t, firstID+2, revs[1].ID)
}

func TestRevisionRepo_BulkUpsertOverwrites(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewRevisionRepo(db)
	ctx := context.Background()
	page := uniquePage()
	firstID := page * 100
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)

	seedHistory(t, repo, page, firstID, start, "old")
	seedHistory(t, repo, page, firstID, start, "new")

	rev, err := repo.FetchOne(ctx, firstID)
	require.NoError(t, err)
	assert.True(t, rev.Fingerprint.Matches(model.NewFingerprint("new")))
}
