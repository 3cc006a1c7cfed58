package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

var subscriberColumnNames = []string{"id", "chat_id", "display_name", "enabled", "min_spots", "levels", "sides", "days", "time_windows", "lead_times", "digest", "created_at", "updated_at"}

func TestSubscriberRepositoryListEnabled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(subscriberColumnNames).
		AddRow("sub-1", int64(42), "Kai", true, 1, "{beginner,intermediate}", "{}", "{sat,sun}",
			[]byte(`[{"start":"07:00","end":"12:00"}]`), "{24h,2h}", "both", now, now)
	mock.ExpectQuery("SELECT id, chat_id").WillReturnRows(rows)

	repo := NewSubscriberRepository(db)
	subscribers, err := repo.ListEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, subscribers, 1)

	sub := subscribers[0]
	assert.Equal(t, int64(42), sub.ChatID)
	assert.Equal(t, []string{"beginner", "intermediate"}, []string(sub.Levels))
	assert.Empty(t, sub.Sides)
	assert.Equal(t, models.TimeWindows{{Start: "07:00", End: "12:00"}}, sub.TimeWindows)
	assert.True(t, sub.WantsLeadTime(models.LeadTime24Hours))
	assert.Equal(t, models.DigestBoth, sub.Digest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepositoryListByDigest(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM subscribers").
		WithArgs("evening", "both").
		WillReturnRows(sqlmock.NewRows(subscriberColumnNames))

	repo := NewSubscriberRepository(db)
	subscribers, err := repo.ListByDigest(context.Background(), models.DigestEvening)
	require.NoError(t, err)
	assert.Empty(t, subscribers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepositoryListEnabledError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM subscribers").WillReturnError(errors.New("connection reset"))

	repo := NewSubscriberRepository(db)
	_, err := repo.ListEnabled(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list enabled subscribers")
}
