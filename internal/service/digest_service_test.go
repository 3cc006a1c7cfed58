package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
)

type digestLedgerStub struct {
	mu         sync.Mutex
	deliveries map[string]models.DigestDelivery
	readErr    error
}

func newDigestLedgerStub() *digestLedgerStub {
	return &digestLedgerStub{deliveries: map[string]models.DigestDelivery{}}
}

func digestKey(subscriberID string, digestType models.DigestType, day time.Time) string {
	return subscriberID + "|" + string(digestType) + "|" + day.Format(models.DateLayout)
}

func (l *digestLedgerStub) DeliveredSubscribers(ctx context.Context, digestType models.DigestType, day time.Time) (map[string]struct{}, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]struct{}{}
	for _, d := range l.deliveries {
		if d.DigestType == digestType && d.DigestDate.Format(models.DateLayout) == day.Format(models.DateLayout) {
			out[d.SubscriberID] = struct{}{}
		}
	}
	return out, nil
}

func (l *digestLedgerStub) Record(ctx context.Context, delivery *models.DigestDelivery) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := digestKey(delivery.SubscriberID, delivery.DigestType, delivery.DigestDate)
	if _, ok := l.deliveries[key]; ok {
		return false, nil
	}
	l.deliveries[key] = *delivery
	return true, nil
}

func newTestDigestService(t *testing.T, now time.Time, sessions []models.Session, subs []models.Subscriber, ledger *digestLedgerStub, messenger *messengerStub, lookahead int) *DigestService {
	t.Helper()
	renderer := NewMessageRenderer(londonLocation(t), 3)
	dispatcher := newTestDispatcher(t, newLedgerStub(), messenger, 4)
	return NewDigestService(
		fixedClock(t, now),
		&sessionRepoStub{sessions: sessions},
		&subscriberRepoStub{subscribers: subs},
		ledger, dispatcher, renderer, nil,
		DigestConfig{LookaheadDays: lookahead}, nil,
	)
}

func TestDigestServiceMorningCoversRestOfToday(t *testing.T) {
	loc := londonLocation(t)
	now := time.Date(2026, 10, 15, 7, 0, 0, 0, loc)
	sessions := []models.Session{
		sessionStarting(time.Date(2026, 10, 15, 6, 0, 0, 0, loc), "Dawn Lesson", "beginner", intPtr(3)),
		sessionStarting(time.Date(2026, 10, 15, 9, 0, 0, 0, loc), "Morning Lesson", "beginner", intPtr(6)),
		sessionStarting(time.Date(2026, 10, 16, 9, 0, 0, 0, loc), "Tomorrow Lesson", "beginner", intPtr(6)),
	}
	ledger := newDigestLedgerStub()
	messenger := &messengerStub{}
	svc := newTestDigestService(t, now, sessions, []models.Subscriber{beginnerSubscriber("sub-1", 1)}, ledger, messenger, 1)

	summary, err := svc.Run(context.Background(), models.DigestMorning)
	require.NoError(t, err)
	assert.Equal(t, "digest-morning", summary.Trigger)
	assert.Equal(t, 1, summary.Sent)

	msgs := messenger.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Today's sessions for you (1)")
	assert.Contains(t, msgs[0].Text, "Morning Lesson")
	assert.NotContains(t, msgs[0].Text, "Dawn Lesson")
	assert.NotContains(t, msgs[0].Text, "Tomorrow Lesson")

	delivered, err := ledger.DeliveredSubscribers(context.Background(), models.DigestMorning, civilDate(now))
	require.NoError(t, err)
	assert.Contains(t, delivered, "sub-1")
}

func TestDigestServiceSecondRunSameDayIsNoop(t *testing.T) {
	loc := londonLocation(t)
	now := time.Date(2026, 10, 15, 19, 0, 0, 0, loc)
	sessions := []models.Session{
		sessionStarting(time.Date(2026, 10, 16, 9, 0, 0, 0, loc), "Tomorrow Lesson", "beginner", intPtr(6)),
	}
	ledger := newDigestLedgerStub()
	messenger := &messengerStub{}
	svc := newTestDigestService(t, now, sessions, []models.Subscriber{beginnerSubscriber("sub-1", 1)}, ledger, messenger, 0)

	_, err := svc.Run(context.Background(), models.DigestEvening)
	require.NoError(t, err)
	summary, err := svc.Run(context.Background(), models.DigestEvening)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Len(t, messenger.messages(), 1)
}

func TestDigestServiceEveningHonoursLookahead(t *testing.T) {
	loc := londonLocation(t)
	now := time.Date(2026, 10, 15, 19, 0, 0, 0, loc)
	svc := newTestDigestService(t, now, nil, nil, newDigestLedgerStub(), &messengerStub{}, 2)

	from, to := svc.Range(models.DigestEvening, now)
	assert.Equal(t, "2026-10-16", from.Format(models.DateLayout))
	assert.Equal(t, "2026-10-18", to.Format(models.DateLayout))

	from, to = svc.Range(models.DigestMorning, now)
	assert.Equal(t, "2026-10-15", from.Format(models.DateLayout))
	assert.Equal(t, "2026-10-15", to.Format(models.DateLayout))
}

func TestDigestServiceSilentWithoutMatches(t *testing.T) {
	loc := londonLocation(t)
	now := time.Date(2026, 10, 15, 19, 0, 0, 0, loc)
	sessions := []models.Session{
		sessionStarting(time.Date(2026, 10, 16, 9, 0, 0, 0, loc), "Advanced Clinic", "advanced", intPtr(6)),
	}
	morningOnly := beginnerSubscriber("sub-am", 2)
	morningOnly.Digest = models.DigestAM
	messenger := &messengerStub{}
	ledger := newDigestLedgerStub()
	svc := newTestDigestService(t, now, sessions, []models.Subscriber{beginnerSubscriber("sub-1", 1), morningOnly}, ledger, messenger, 0)

	summary, err := svc.Run(context.Background(), models.DigestEvening)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
	assert.Empty(t, messenger.messages())
	assert.Empty(t, ledger.deliveries)
}

func TestDigestServiceFailedSendIsRetriedNextRun(t *testing.T) {
	loc := londonLocation(t)
	now := time.Date(2026, 10, 15, 19, 0, 0, 0, loc)
	sessions := []models.Session{
		sessionStarting(time.Date(2026, 10, 16, 9, 0, 0, 0, loc), "Tomorrow Lesson", "beginner", intPtr(6)),
	}
	ledger := newDigestLedgerStub()
	messenger := &messengerStub{failFor: map[int64]error{1: errors.New("bad gateway")}}
	svc := newTestDigestService(t, now, sessions, []models.Subscriber{beginnerSubscriber("sub-1", 1), beginnerSubscriber("sub-2", 2)}, ledger, messenger, 0)

	summary, err := svc.Run(context.Background(), models.DigestEvening)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, ledger.deliveries, 1)

	messenger.failFor = nil
	summary, err = svc.Run(context.Background(), models.DigestEvening)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestDigestServiceRejectsUnknownType(t *testing.T) {
	now := time.Date(2026, 10, 15, 19, 0, 0, 0, londonLocation(t))
	svc := newTestDigestService(t, now, nil, nil, newDigestLedgerStub(), &messengerStub{}, 0)

	_, err := svc.Run(context.Background(), models.DigestType("weekly"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestDigestServiceUnreadableLedgerIsUnavailable(t *testing.T) {
	loc := londonLocation(t)
	now := time.Date(2026, 10, 15, 19, 0, 0, 0, loc)
	sessions := []models.Session{
		sessionStarting(time.Date(2026, 10, 16, 9, 0, 0, 0, loc), "Tomorrow Lesson", "beginner", intPtr(6)),
	}
	ledger := newDigestLedgerStub()
	ledger.readErr = errors.New("timeout")
	svc := newTestDigestService(t, now, sessions, []models.Subscriber{beginnerSubscriber("sub-1", 1)}, ledger, &messengerStub{}, 0)

	_, err := svc.Run(context.Background(), models.DigestEvening)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnavailable))
}
