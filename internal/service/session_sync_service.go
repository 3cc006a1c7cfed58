package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/models"
	"github.com/noah-isme/wave-alert-api/internal/repository"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/logger"
)

type sessionStore interface {
	ApplyRefresh(ctx context.Context, from, to time.Time, plan repository.SnapshotFunc) error
}

// ScheduleFeed fetches an acquisition from the upstream schedule collaborator.
type ScheduleFeed interface {
	Fetch(ctx context.Context) (*dto.AcquisitionRequest, error)
}

type changeNotifier interface {
	Detect(previous, fresh []models.Session, from, to, now time.Time) Diff
	Pending(ctx context.Context, now time.Time) ([]Promotion, error)
	Notify(ctx context.Context, promotions []Promotion) ([]CandidateResult, error)
}

// SessionSyncService applies fresh acquisitions and triggers change alerts.
type SessionSyncService struct {
	clock     *Clock
	sessions  sessionStore
	changes   changeNotifier
	feed      ScheduleFeed
	validator *validator.Validate
	metrics   *MetricsService
	runBudget time.Duration
	logger    *zap.Logger
}

// NewSessionSyncService constructs the service. feed may be nil when acquisitions are always pushed.
func NewSessionSyncService(clock *Clock, sessions sessionStore, changes changeNotifier, feed ScheduleFeed, validate *validator.Validate, metrics *MetricsService, runBudget time.Duration, logger *zap.Logger) *SessionSyncService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSyncService{
		clock:     clock,
		sessions:  sessions,
		changes:   changes,
		feed:      feed,
		validator: validate,
		metrics:   metrics,
		runBudget: runBudget,
		logger:    logger,
	}
}

// Refresh stores the acquisition, records transitions and alerts on promoted ones.
// A nil request pulls the acquisition from the configured feed.
func (s *SessionSyncService) Refresh(ctx context.Context, req *dto.AcquisitionRequest) (*dto.RunSummary, error) {
	started := time.Now()
	now := s.clock.Now()
	summary := newRunSummary("refresh", now)
	log := logger.ForRun(s.logger, summary.Trigger, summary.RunID)

	ctx, cancel := withBudget(ctx, s.runBudget)
	defer cancel()

	result, err := s.refresh(ctx, log, req, now)
	if err != nil {
		s.metrics.ObserveRun(summary.Trigger, err, time.Since(started))
		return nil, err
	}
	summary.DispatchSummary = result.dispatch
	summary.Changes = result.changes

	finishRun(summary, started)
	s.metrics.ObserveRun(summary.Trigger, nil, time.Since(started))
	log.Info("refresh finished",
		zap.Int("received", result.changes.Received),
		zap.Int("skipped", result.changes.Skipped),
		zap.Int("promoted", result.changes.Promoted),
		zap.Int("sent", summary.Sent),
	)
	return summary, nil
}

type refreshResult struct {
	changes  *dto.ChangeSummary
	dispatch dto.DispatchSummary
}

func (s *SessionSyncService) refresh(ctx context.Context, log *zap.Logger, req *dto.AcquisitionRequest, now time.Time) (*refreshResult, error) {
	if req == nil {
		if s.feed == nil {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "no acquisition supplied and no schedule feed configured")
		}
		fetched, err := s.feed.Fetch(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch schedule feed")
		}
		req = fetched
	}

	from, to, err := s.coverage(req)
	if err != nil {
		return nil, err
	}

	fresh, skipped := s.parseSessions(log, req.Sessions, from, to)
	changes := &dto.ChangeSummary{Received: len(req.Sessions), Skipped: skipped}

	var diff Diff
	err = s.sessions.ApplyRefresh(ctx, from, to, func(previous []models.Session) repository.RefreshBatch {
		diff = s.changes.Detect(previous, fresh, from, to, now)
		return repository.RefreshBatch{Upserts: diff.Upserts, Deactivate: diff.Deactivate, Changes: diff.Changes}
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store acquisition")
	}

	changes.New = diff.Count(models.ChangeNew)
	changes.CapacityIncreased = diff.Count(models.ChangeCapacityIncreased)
	changes.CapacityDecreased = diff.Count(models.ChangeCapacityDecreased)
	changes.Cancelled = diff.Count(models.ChangeCancelled)
	changes.Promoted = len(diff.Promotions)

	promotions := diff.Promotions
	if pending, err := s.changes.Pending(ctx, now); err != nil {
		log.Warn("re-deriving pending change alerts failed", zap.Error(err))
	} else {
		promotions, changes.Pending = MergePromotions(promotions, pending)
	}

	results, err := s.changes.Notify(ctx, promotions)
	if err != nil {
		return nil, err
	}
	return &refreshResult{changes: changes, dispatch: Summarize(results)}, nil
}

func (s *SessionSyncService) coverage(req *dto.AcquisitionRequest) (time.Time, time.Time, error) {
	if err := s.validator.Struct(req); err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid acquisition range")
	}
	from, err := time.ParseInLocation(models.DateLayout, req.From, s.clock.Location())
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from date")
	}
	to, err := time.ParseInLocation(models.DateLayout, req.To, s.clock.Location())
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to date")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "acquisition range ends before it starts")
	}
	return from, to, nil
}

// parseSessions converts valid entries inside [from, to]; malformed or duplicate entries are skipped.
func (s *SessionSyncService) parseSessions(log *zap.Logger, entries []dto.AcquiredSession, from, to time.Time) ([]models.Session, int) {
	fresh := make([]models.Session, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	skipped := 0
	for i, entry := range entries {
		session, err := s.toSession(entry, from, to)
		if err != nil {
			skipped++
			log.Warn("skipping malformed upstream session", zap.Int("index", i), zap.String("name", entry.Name), zap.Error(err))
			continue
		}
		if _, dup := seen[session.ID]; dup {
			skipped++
			log.Warn("skipping duplicate upstream session", zap.Int("index", i), zap.String("session_id", session.ID))
			continue
		}
		seen[session.ID] = struct{}{}
		fresh = append(fresh, session)
	}
	return fresh, skipped
}

func (s *SessionSyncService) toSession(entry dto.AcquiredSession, from, to time.Time) (models.Session, error) {
	if err := s.validator.Struct(entry); err != nil {
		return models.Session{}, err
	}
	date, err := time.ParseInLocation(models.DateLayout, entry.Date, s.clock.Location())
	if err != nil {
		return models.Session{}, err
	}
	if date.Before(from) || date.After(to) {
		return models.Session{}, appErrors.Clone(appErrors.ErrValidation, "session date outside acquisition range")
	}

	session := models.Session{
		ID:             models.SessionID(date, entry.StartTime, entry.Name),
		Name:           strings.TrimSpace(entry.Name),
		SessionDate:    date,
		StartTime:      entry.StartTime,
		Level:          strings.ToLower(strings.TrimSpace(entry.Level)),
		TotalSpots:     entry.TotalSpots,
		AvailableSpots: entry.AvailableSpots,
		BookingURL:     entry.BookingURL,
		Active:         true,
	}
	if entry.EndTime != "" {
		end := entry.EndTime
		session.EndTime = &end
	}
	if entry.Side != "" {
		side := entry.Side
		session.Side = &side
	}
	return session, nil
}
