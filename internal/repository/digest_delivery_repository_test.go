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

func TestDigestDeliveryRepositoryDeliveredSubscribers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT subscriber_id FROM digest_deliveries").
		WithArgs("morning", "2026-10-15").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow("sub-1").AddRow("sub-3"))

	repo := NewDigestDeliveryRepository(db)
	delivered, err := repo.DeliveredSubscribers(context.Background(), models.DigestMorning, day)
	require.NoError(t, err)
	assert.Len(t, delivered, 2)
	assert.Contains(t, delivered, "sub-3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDigestDeliveryRepositoryRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO digest_deliveries").
		WithArgs(sqlmock.AnyArg(), "sub-1", "evening", "2026-10-15", 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("d-1"))
	mock.ExpectQuery("INSERT INTO digest_deliveries").
		WithArgs(sqlmock.AnyArg(), "sub-1", "evening", "2026-10-15", 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewDigestDeliveryRepository(db)
	first, err := repo.Record(context.Background(), &models.DigestDelivery{SubscriberID: "sub-1", DigestType: models.DigestEvening, DigestDate: day, SessionCount: 3})
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.Record(context.Background(), &models.DigestDelivery{SubscriberID: "sub-1", DigestType: models.DigestEvening, DigestDate: day, SessionCount: 3})
	require.NoError(t, err)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}
