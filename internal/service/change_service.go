package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/models"
	"github.com/noah-isme/wave-alert-api/internal/repository"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
)

// ChangeThresholds are the capacity levels that promote a transition to an alert.
type ChangeThresholds struct {
	// BecameAvailableFrom is the spot count a session must rise above, from at or below it.
	BecameAvailableFrom int
	// FillingFast is the low-water mark a session must drop to, from above it.
	FillingFast int
	// RetryWindow is how far back recorded transitions are re-alerted when their
	// earlier delivery did not complete. Zero means 24h.
	RetryWindow time.Duration
}

const defaultRetryWindow = 24 * time.Hour

type changeHistory interface {
	ListLatestChanges(ctx context.Context, since time.Time) ([]repository.LatestChange, error)
}

// Promotion is a transition that is alerted immediately under a synthetic lead tag.
type Promotion struct {
	Session  models.Session
	LeadTime models.LeadTime
}

// Diff is the outcome of comparing a fresh acquisition against the stored snapshot.
type Diff struct {
	Upserts    []models.Session
	Deactivate []string
	Changes    []models.ChangeRecord
	Promotions []Promotion
}

// Count returns the number of change records of the given kind.
func (d Diff) Count(kind models.ChangeKind) int {
	n := 0
	for _, change := range d.Changes {
		if change.Kind == kind {
			n++
		}
	}
	return n
}

// ChangeService classifies session transitions and alerts on promoted ones.
type ChangeService struct {
	clock       *Clock
	subscribers subscriberReader
	history     changeHistory
	dispatcher  candidateDispatcher
	thresholds  ChangeThresholds
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewChangeService constructs the service. history may be nil, in which case
// only transitions detected by the current refresh are alerted.
func NewChangeService(clock *Clock, subscribers subscriberReader, history changeHistory, dispatcher candidateDispatcher, thresholds ChangeThresholds, metrics *MetricsService, logger *zap.Logger) *ChangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds.RetryWindow <= 0 {
		thresholds.RetryWindow = defaultRetryWindow
	}
	return &ChangeService{
		clock:       clock,
		subscribers: subscribers,
		history:     history,
		dispatcher:  dispatcher,
		thresholds:  thresholds,
		metrics:     metrics,
		logger:      logger,
	}
}

// Detect diffs fresh sessions against the stored snapshot of the covered dates [from, to].
// Stored active sessions on a covered date that are absent from fresh are cancelled.
func (s *ChangeService) Detect(previous, fresh []models.Session, from, to, now time.Time) Diff {
	prevByID := make(map[string]models.Session, len(previous))
	for _, session := range previous {
		prevByID[session.ID] = session
	}

	var diff Diff
	seen := make(map[string]struct{}, len(fresh))
	for _, next := range fresh {
		seen[next.ID] = struct{}{}
		next.Active = true

		prev, known := prevByID[next.ID]
		if known {
			next.FirstSeenAt = prev.FirstSeenAt
		}
		diff.Upserts = append(diff.Upserts, next)

		var kind models.ChangeKind
		switch {
		case !known || !prev.Active:
			kind = models.ChangeNew
		default:
			kind = capacityChange(prev.AvailableSpots, next.AvailableSpots)
		}
		if kind == "" {
			continue
		}

		record := newChangeRecord(next.ID, kind, nil, next.AvailableSpots, now)
		if known && prev.Active {
			record.OldSpots = copySpots(prev.AvailableSpots)
		}
		diff.Changes = append(diff.Changes, record)

		if kind == models.ChangeNew {
			continue
		}
		if tag := s.promotion(prev.AvailableSpots, next.AvailableSpots); tag != "" && s.upcoming(next, now) {
			diff.Promotions = append(diff.Promotions, Promotion{Session: next, LeadTime: tag})
		}
	}

	fromKey, toKey := from.Format(models.DateLayout), to.Format(models.DateLayout)
	for _, prev := range previous {
		if !prev.Active {
			continue
		}
		if _, ok := seen[prev.ID]; ok {
			continue
		}
		if day := prev.DateKey(); day < fromKey || day > toKey {
			continue
		}
		diff.Deactivate = append(diff.Deactivate, prev.ID)
		diff.Changes = append(diff.Changes, newChangeRecord(prev.ID, models.ChangeCancelled, prev.AvailableSpots, prev.AvailableSpots, now))
	}

	for _, change := range diff.Changes {
		s.metrics.RecordChange(string(change.Kind))
	}
	return diff
}

// Pending re-derives promotions from recorded transitions that are still the
// latest change of an active, upcoming session whose capacity has not moved since.
// Already delivered alerts are dropped by the send ledger when dispatched again.
func (s *ChangeService) Pending(ctx context.Context, now time.Time) ([]Promotion, error) {
	if s.history == nil {
		return nil, nil
	}
	latest, err := s.history.ListLatestChanges(ctx, now.Add(-s.thresholds.RetryWindow))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load recent changes")
	}

	var pending []Promotion
	for _, change := range latest {
		if change.ChangeKind != models.ChangeCapacityIncreased && change.ChangeKind != models.ChangeCapacityDecreased {
			continue
		}
		if !change.Active || !sameSpots(change.ChangeNewSpots, change.AvailableSpots) {
			continue
		}
		tag := s.promotion(change.ChangeOldSpots, change.ChangeNewSpots)
		if tag == "" || !s.upcoming(change.Session, now) {
			continue
		}
		pending = append(pending, Promotion{Session: change.Session, LeadTime: tag})
	}
	return pending, nil
}

// MergePromotions appends the pending promotions not already present in fresh and
// reports how many were added.
func MergePromotions(fresh, pending []Promotion) ([]Promotion, int) {
	seen := make(map[models.LedgerKey]struct{}, len(fresh))
	for _, promo := range fresh {
		seen[models.LedgerKey{SessionID: promo.Session.ID, LeadTime: promo.LeadTime}] = struct{}{}
	}
	merged := append([]Promotion(nil), fresh...)
	added := 0
	for _, promo := range pending {
		key := models.LedgerKey{SessionID: promo.Session.ID, LeadTime: promo.LeadTime}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, promo)
		added++
	}
	return merged, added
}

// Notify dispatches every promotion to all coarsely eligible subscribers,
// regardless of their lead-time preferences.
func (s *ChangeService) Notify(ctx context.Context, promotions []Promotion) ([]CandidateResult, error) {
	if len(promotions) == 0 {
		return nil, nil
	}
	subscribers, err := s.subscribers.ListEnabled(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load subscribers")
	}

	var candidates []Candidate
	for _, promo := range promotions {
		for _, sub := range subscribers {
			if Matches(promo.Session, sub) {
				candidates = append(candidates, Candidate{Subscriber: sub, Session: promo.Session, LeadTime: promo.LeadTime})
			}
		}
	}
	s.logger.Sugar().Infow("dispatching change alerts", "promotions", len(promotions), "candidates", len(candidates))
	return s.dispatcher.Dispatch(ctx, candidates)
}

func (s *ChangeService) promotion(oldSpots, newSpots *int) models.LeadTime {
	if oldSpots == nil || newSpots == nil {
		return ""
	}
	prev, next := *oldSpots, *newSpots
	switch {
	case prev <= s.thresholds.BecameAvailableFrom && next > s.thresholds.BecameAvailableFrom:
		return models.LeadTimeBecameAvailable
	case prev > s.thresholds.FillingFast && next > 0 && next <= s.thresholds.FillingFast:
		return models.LeadTimeFillingFast
	default:
		return ""
	}
}

func (s *ChangeService) upcoming(session models.Session, now time.Time) bool {
	startsAt, err := session.StartsAt(s.clock.Location())
	return err == nil && startsAt.After(now)
}

// capacityChange classifies a transition between two observations of an active session.
// Unknown to known counts as a decrease and known to unknown as an increase.
func capacityChange(oldSpots, newSpots *int) models.ChangeKind {
	switch {
	case oldSpots == nil && newSpots == nil:
		return ""
	case oldSpots == nil:
		return models.ChangeCapacityDecreased
	case newSpots == nil:
		return models.ChangeCapacityIncreased
	case *newSpots > *oldSpots:
		return models.ChangeCapacityIncreased
	case *newSpots < *oldSpots:
		return models.ChangeCapacityDecreased
	default:
		return ""
	}
}

func newChangeRecord(sessionID string, kind models.ChangeKind, oldSpots, newSpots *int, now time.Time) models.ChangeRecord {
	return models.ChangeRecord{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Kind:       kind,
		OldSpots:   copySpots(oldSpots),
		NewSpots:   copySpots(newSpots),
		DetectedAt: now.UTC(),
	}
}

func sameSpots(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copySpots(spots *int) *int {
	if spots == nil {
		return nil
	}
	v := *spots
	return &v
}
