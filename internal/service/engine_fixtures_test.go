package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wave-alert-api/internal/models"
	"github.com/noah-isme/wave-alert-api/internal/repository"
)

func londonLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func fixedClock(t *testing.T, now time.Time) *Clock {
	t.Helper()
	return NewClock(londonLocation(t), func() time.Time { return now })
}

func intPtr(v int) *int {
	return &v
}

func sidePtr(v string) *string {
	return &v
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sessionStarting builds an active session whose start is the wall-clock time of at.
func sessionStarting(at time.Time, name, level string, spots *int) models.Session {
	date := civilDate(at)
	start := at.Format("15:04")
	return models.Session{
		ID:             models.SessionID(date, start, name),
		Name:           name,
		SessionDate:    date,
		StartTime:      start,
		Level:          level,
		Side:           sidePtr(models.SideLeft),
		AvailableSpots: spots,
		BookingURL:     "https://book.example/" + start,
		Active:         true,
	}
}

func beginnerSubscriber(id string, chatID int64) models.Subscriber {
	return models.Subscriber{
		ID:        id,
		ChatID:    chatID,
		Enabled:   true,
		MinSpots:  1,
		Levels:    []string{"beginner"},
		LeadTimes: []string{string(models.LeadTime24Hours)},
		Digest:    models.DigestBoth,
	}
}

type ledgerStub struct {
	mu          sync.Mutex
	records     map[models.LedgerKey]models.SendRecord
	sentKeysErr error
	alreadyErr  error
	recordErr   error
	// preempt marks keys recorded by an overlapping run right before RecordSent.
	preempt map[models.LedgerKey]bool
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{records: map[models.LedgerKey]models.SendRecord{}, preempt: map[models.LedgerKey]bool{}}
}

func (l *ledgerStub) AlreadySent(ctx context.Context, subscriberID, sessionID string, lead models.LeadTime) (bool, error) {
	if l.alreadyErr != nil {
		return false, l.alreadyErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[models.LedgerKey{SubscriberID: subscriberID, SessionID: sessionID, LeadTime: lead}]
	return ok, nil
}

func (l *ledgerStub) SentKeys(ctx context.Context, sessionIDs []string) (map[models.LedgerKey]struct{}, error) {
	if l.sentKeysErr != nil {
		return nil, l.sentKeysErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range sessionIDs {
		wanted[id] = true
	}
	keys := map[models.LedgerKey]struct{}{}
	for key := range l.records {
		if wanted[key.SessionID] {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

func (l *ledgerStub) RecordSent(ctx context.Context, record *models.SendRecord) (bool, error) {
	if l.recordErr != nil {
		return false, l.recordErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := record.Key()
	if l.preempt[key] {
		delete(l.preempt, key)
		l.records[key] = *record
		return false, nil
	}
	if _, ok := l.records[key]; ok {
		return false, nil
	}
	l.records[key] = *record
	return true, nil
}

func (l *ledgerStub) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type messengerStub struct {
	mu       sync.Mutex
	sent     []models.OutboundMessage
	failFor  map[int64]error
	delay    time.Duration
	block    bool
	inFlight int32
	peak     int32
}

func (m *messengerStub) Send(ctx context.Context, msg models.OutboundMessage) error {
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		old := atomic.LoadInt32(&m.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&m.peak, old, cur) {
			break
		}
	}

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.failFor[msg.ChatID]; err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *messengerStub) messages() []models.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.OutboundMessage(nil), m.sent...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

type sessionRepoStub struct {
	mu         sync.Mutex
	sessions   []models.Session
	changes    []models.ChangeRecord
	err        error
	applyErr   error
	historyErr error
}

func inRange(session models.Session, from, to time.Time) bool {
	day := session.DateKey()
	return day >= from.Format(models.DateLayout) && day <= to.Format(models.DateLayout)
}

func (r *sessionRepoStub) ListActiveBetween(ctx context.Context, from, to time.Time) ([]models.Session, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, s := range r.sessions {
		if s.Active && inRange(s, from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *sessionRepoStub) ApplyRefresh(ctx context.Context, from, to time.Time, plan repository.SnapshotFunc) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var previous []models.Session
	for _, s := range r.sessions {
		if inRange(s, from, to) {
			previous = append(previous, s)
		}
	}
	batch := plan(previous)
	for _, up := range batch.Upserts {
		replaced := false
		for i := range r.sessions {
			if r.sessions[i].ID == up.ID {
				r.sessions[i] = up
				replaced = true
			}
		}
		if !replaced {
			r.sessions = append(r.sessions, up)
		}
	}
	for _, id := range batch.Deactivate {
		for i := range r.sessions {
			if r.sessions[i].ID == id {
				r.sessions[i].Active = false
			}
		}
	}
	r.changes = append(r.changes, batch.Changes...)
	return nil
}

// ListLatestChanges treats later entries as more recent when detection times tie.
func (r *sessionRepoStub) ListLatestChanges(ctx context.Context, since time.Time) ([]repository.LatestChange, error) {
	if r.historyErr != nil {
		return nil, r.historyErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[string]models.ChangeRecord)
	var order []string
	for _, change := range r.changes {
		if change.DetectedAt.Before(since) {
			continue
		}
		if _, ok := latest[change.SessionID]; !ok {
			order = append(order, change.SessionID)
		}
		latest[change.SessionID] = change
	}
	var out []repository.LatestChange
	for _, id := range order {
		for _, s := range r.sessions {
			if s.ID != id || !s.Active {
				continue
			}
			change := latest[id]
			out = append(out, repository.LatestChange{
				Session:        s,
				ChangeKind:     change.Kind,
				ChangeOldSpots: change.OldSpots,
				ChangeNewSpots: change.NewSpots,
				ChangedAt:      change.DetectedAt,
			})
		}
	}
	return out, nil
}

func (r *sessionRepoStub) find(id string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return models.Session{}, false
}

type subscriberRepoStub struct {
	subscribers []models.Subscriber
	err         error
}

func (r *subscriberRepoStub) ListEnabled(ctx context.Context) ([]models.Subscriber, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Subscriber
	for _, s := range r.subscribers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *subscriberRepoStub) ListByDigest(ctx context.Context, digestType models.DigestType) ([]models.Subscriber, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Subscriber
	for _, s := range r.subscribers {
		if s.Enabled && s.Digest.Includes(digestType) {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestDispatcher(t *testing.T, ledger sendLedger, messenger Messenger, concurrency int) *Dispatcher {
	t.Helper()
	renderer := NewMessageRenderer(londonLocation(t), 3)
	return NewDispatcher(ledger, messenger, renderer, nil, nil, DispatcherConfig{Concurrency: concurrency, SendTimeout: time.Second}, nil)
}
