package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

func TestChangeRepositoryListSince(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("FROM session_changes WHERE detected_at >=").
		WithArgs(since, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "kind", "old_spots", "new_spots", "detected_at"}).
			AddRow("c-1", "s-1", "capacity_increased", 0, 4, time.Now()).
			AddRow("c-2", "s-2", "new", nil, nil, time.Now()))

	repo := NewChangeRepository(db)
	records, err := repo.ListSince(context.Background(), since, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.ChangeCapacityIncreased, records[0].Kind)
	require.NotNil(t, records[0].NewSpots)
	assert.Equal(t, 4, *records[0].NewSpots)
	assert.Nil(t, records[1].OldSpots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepositoryListLatestChanges(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	since := time.Now().Add(-24 * time.Hour)
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	columns := append(append([]string{}, sessionColumnNames...), "change_kind", "change_old_spots", "change_new_spots", "change_detected_at")
	mock.ExpectQuery("SELECT DISTINCT ON \\(c.session_id\\)").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("s-1", "Beginner Lesson", day, "09:00", nil, "beginner", "L", nil, 4, "https://book/1", true, since, since,
				"capacity_increased", 0, 4, time.Now()))

	repo := NewChangeRepository(db)
	latest, err := repo.ListLatestChanges(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "s-1", latest[0].ID)
	assert.Equal(t, models.ChangeCapacityIncreased, latest[0].ChangeKind)
	require.NotNil(t, latest[0].ChangeOldSpots)
	assert.Equal(t, 0, *latest[0].ChangeOldSpots)
	assert.Equal(t, latest[0].AvailableSpots, latest[0].ChangeNewSpots)
	assert.NoError(t, mock.ExpectationsWereMet())
}
