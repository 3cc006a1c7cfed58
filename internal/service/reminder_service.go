package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/logger"
)

type sessionReader interface {
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]models.Session, error)
}

type subscriberReader interface {
	ListEnabled(ctx context.Context) ([]models.Subscriber, error)
	ListByDigest(ctx context.Context, digestType models.DigestType) ([]models.Subscriber, error)
}

type candidateDispatcher interface {
	Dispatch(ctx context.Context, candidates []Candidate) ([]CandidateResult, error)
}

// ReminderConfig tunes the lead-time reminder pass.
type ReminderConfig struct {
	Tolerance time.Duration
	RunBudget time.Duration
}

// ReminderService runs one idempotent reminder pass per trigger.
type ReminderService struct {
	clock       *Clock
	sessions    sessionReader
	subscribers subscriberReader
	dispatcher  candidateDispatcher
	metrics     *MetricsService
	cfg         ReminderConfig
	logger      *zap.Logger
}

// NewReminderService constructs the service.
func NewReminderService(clock *Clock, sessions sessionReader, subscribers subscriberReader, dispatcher candidateDispatcher, metrics *MetricsService, cfg ReminderConfig, logger *zap.Logger) *ReminderService {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 45 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		clock:       clock,
		sessions:    sessions,
		subscribers: subscribers,
		dispatcher:  dispatcher,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run matches upcoming sessions against subscribers and dispatches every due reminder.
func (s *ReminderService) Run(ctx context.Context) (*dto.RunSummary, error) {
	started := time.Now()
	summary := newRunSummary("reminders", s.clock.Now())
	log := logger.ForRun(s.logger, summary.Trigger, summary.RunID)

	ctx, cancel := withBudget(ctx, s.cfg.RunBudget)
	defer cancel()

	candidates, err := s.Candidates(ctx, s.clock.Now())
	if err != nil {
		s.metrics.ObserveRun(summary.Trigger, err, time.Since(started))
		return nil, err
	}

	results, err := s.dispatcher.Dispatch(ctx, candidates)
	if err != nil {
		s.metrics.ObserveRun(summary.Trigger, err, time.Since(started))
		return nil, err
	}

	summary.DispatchSummary = Summarize(results)
	finishRun(summary, started)
	s.metrics.ObserveRun(summary.Trigger, nil, time.Since(started))
	log.Info("reminder run finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("unprocessed", summary.Unprocessed),
	)
	return summary, nil
}

// Candidates returns every (subscriber, session, lead time) triple due at now.
func (s *ReminderService) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	windows := s.clock.Windows(now, s.cfg.Tolerance)
	span := Span(windows)

	sessions, err := s.sessions.ListActiveBetween(ctx, s.clock.Day(span.Start), s.clock.Day(span.End))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load sessions")
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	subscribers, err := s.subscribers.ListEnabled(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load subscribers")
	}

	var candidates []Candidate
	for _, session := range sessions {
		startsAt, err := session.StartsAt(s.clock.Location())
		if err != nil {
			s.logger.Sugar().Warnw("skipping session with unreadable start", "session_id", session.ID, "error", err)
			continue
		}
		if !startsAt.After(now) {
			continue
		}
		for _, sub := range subscribers {
			if !Matches(session, sub) {
				continue
			}
			for _, lt := range MatchingLeadTimes(startsAt, sub, windows) {
				candidates = append(candidates, Candidate{Subscriber: sub, Session: session, LeadTime: lt})
			}
		}
	}
	return candidates, nil
}

func newRunSummary(trigger string, startedAt time.Time) *dto.RunSummary {
	return &dto.RunSummary{
		Trigger:   trigger,
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
	}
}

func finishRun(summary *dto.RunSummary, started time.Time) {
	summary.Duration = time.Since(started).Round(time.Millisecond).String()
}

func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}
