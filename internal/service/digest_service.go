package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/jobs"
	"github.com/noah-isme/wave-alert-api/pkg/logger"
)

type digestLedger interface {
	DeliveredSubscribers(ctx context.Context, digestType models.DigestType, day time.Time) (map[string]struct{}, error)
	Record(ctx context.Context, delivery *models.DigestDelivery) (bool, error)
}

type digestDeliverer interface {
	Deliver(ctx context.Context, msg models.OutboundMessage) error
	Forecasts(ctx context.Context, days []string) map[string]*models.WeatherReport
	Concurrency() int
}

// DigestConfig tunes the digest batcher.
type DigestConfig struct {
	LookaheadDays int
	RunBudget     time.Duration
}

// DigestService sends at most one digest per subscriber, digest type and business day.
type DigestService struct {
	clock       *Clock
	sessions    sessionReader
	subscribers subscriberReader
	deliveries  digestLedger
	deliverer   digestDeliverer
	renderer    *MessageRenderer
	metrics     *MetricsService
	cfg         DigestConfig
	logger      *zap.Logger
}

type digestTask struct {
	subscriber models.Subscriber
	sessions   []models.Session
	outcome    Outcome
}

// NewDigestService constructs the service.
func NewDigestService(clock *Clock, sessions sessionReader, subscribers subscriberReader, deliveries digestLedger, deliverer digestDeliverer, renderer *MessageRenderer, metrics *MetricsService, cfg DigestConfig, logger *zap.Logger) *DigestService {
	if cfg.LookaheadDays < 0 {
		cfg.LookaheadDays = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigestService{
		clock:       clock,
		sessions:    sessions,
		subscribers: subscribers,
		deliveries:  deliveries,
		deliverer:   deliverer,
		renderer:    renderer,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Range returns the business dates a digest covers when run at now.
// Morning covers today; evening covers tomorrow plus the look-ahead days.
func (s *DigestService) Range(digestType models.DigestType, now time.Time) (time.Time, time.Time) {
	today := s.clock.Day(now)
	if digestType == models.DigestMorning {
		return today, today
	}
	from := today.AddDate(0, 0, 1)
	return from, from.AddDate(0, 0, s.cfg.LookaheadDays)
}

// Run sends the digest of the given type. Running it again on the same business day is a no-op.
func (s *DigestService) Run(ctx context.Context, digestType models.DigestType) (*dto.RunSummary, error) {
	if !digestType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "digest type must be morning or evening")
	}

	started := time.Now()
	now := s.clock.Now()
	summary := newRunSummary("digest-"+string(digestType), now)
	log := logger.ForRun(s.logger, summary.Trigger, summary.RunID)

	ctx, cancel := withBudget(ctx, s.cfg.RunBudget)
	defer cancel()

	tasks, duplicates, err := s.plan(ctx, digestType, now)
	if err != nil {
		s.metrics.ObserveRun(summary.Trigger, err, time.Since(started))
		return nil, err
	}

	var days []string
	for _, task := range tasks {
		for _, session := range task.sessions {
			days = append(days, session.DateKey())
		}
	}
	forecasts := s.deliverer.Forecasts(ctx, days)
	today := s.clock.Day(now)

	batch := make([]jobs.Job, len(tasks))
	for i, task := range tasks {
		batch[i] = jobs.Job{ID: task.subscriber.ID, Type: string(digestType), Payload: task}
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		task := job.Payload.(*digestTask)
		return s.deliver(ctx, log, digestType, today, task, forecasts)
	}
	pool := jobs.NewPool("digest", handler, jobs.PoolConfig{Workers: s.deliverer.Concurrency(), Logger: log})

	outcomes := make([]Outcome, 0, len(tasks)+duplicates)
	for _, res := range pool.Drain(ctx, batch) {
		task := res.Job.Payload.(*digestTask)
		if res.Skipped {
			task.outcome = OutcomeSkippedDeadline
		}
		outcomes = append(outcomes, task.outcome)
		s.metrics.RecordNotification("digest-"+string(digestType), task.outcome)
	}
	for i := 0; i < duplicates; i++ {
		outcomes = append(outcomes, OutcomeSkippedDuplicate)
	}

	summary.DispatchSummary = summarizeOutcomes(outcomes)
	finishRun(summary, started)
	s.metrics.ObserveRun(summary.Trigger, nil, time.Since(started))
	log.Info("digest run finished",
		zap.Int("recipients", len(tasks)),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("already_delivered", summary.Duplicates),
	)
	return summary, nil
}

// plan returns one task per subscriber with at least one eligible session,
// plus the number of subscribers already served today.
func (s *DigestService) plan(ctx context.Context, digestType models.DigestType, now time.Time) ([]*digestTask, int, error) {
	from, to := s.Range(digestType, now)
	sessions, err := s.sessions.ListActiveBetween(ctx, from, to)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load sessions")
	}

	upcoming := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		startsAt, err := session.StartsAt(s.clock.Location())
		if err != nil {
			s.logger.Sugar().Warnw("skipping session with unreadable start", "session_id", session.ID, "error", err)
			continue
		}
		if startsAt.After(now) {
			upcoming = append(upcoming, session)
		}
	}
	if len(upcoming) == 0 {
		return nil, 0, nil
	}

	subscribers, err := s.subscribers.ListByDigest(ctx, digestType)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load subscribers")
	}
	delivered, err := s.deliveries.DeliveredSubscribers(ctx, digestType, s.clock.Day(now))
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load digest deliveries")
	}

	var tasks []*digestTask
	duplicates := 0
	for _, sub := range subscribers {
		if !sub.Digest.Includes(digestType) {
			continue
		}
		var matched []models.Session
		for _, session := range upcoming {
			if Matches(session, sub) {
				matched = append(matched, session)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if _, ok := delivered[sub.ID]; ok {
			duplicates++
			continue
		}
		tasks = append(tasks, &digestTask{subscriber: sub, sessions: matched})
	}
	return tasks, duplicates, nil
}

func (s *DigestService) deliver(ctx context.Context, log *zap.Logger, digestType models.DigestType, today time.Time, task *digestTask, forecasts map[string]*models.WeatherReport) error {
	msg := s.renderer.Digest(task.subscriber, digestType, task.sessions, forecasts)
	if err := s.deliverer.Deliver(ctx, msg); err != nil {
		task.outcome = OutcomeFailed
		log.Warn("digest send failed", zap.String("subscriber_id", task.subscriber.ID), zap.Error(err))
		return err
	}
	task.outcome = OutcomeSent

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	recorded, err := s.deliveries.Record(recordCtx, &models.DigestDelivery{
		SubscriberID: task.subscriber.ID,
		DigestType:   digestType,
		DigestDate:   today,
		SessionCount: len(task.sessions),
		SentAt:       time.Now().UTC(),
	})
	switch {
	case err != nil:
		log.Error("digest delivered but not recorded", zap.String("subscriber_id", task.subscriber.ID), zap.Error(err))
	case !recorded:
		log.Debug("digest already recorded by an overlapping run", zap.String("subscriber_id", task.subscriber.ID))
	}
	return nil
}
