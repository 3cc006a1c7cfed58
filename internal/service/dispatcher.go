package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/jobs"
)

const recordTimeout = 5 * time.Second

// Outcome is the per-candidate result of a dispatch.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeFailed           Outcome = "failed"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeSkippedDeadline  Outcome = "skipped_deadline"
)

// Candidate is one (subscriber, session, lead time) triple eligible for delivery.
type Candidate struct {
	Subscriber models.Subscriber
	Session    models.Session
	LeadTime   models.LeadTime
}

// Key returns the ledger identity of the candidate.
func (c Candidate) Key() models.LedgerKey {
	return models.LedgerKey{SubscriberID: c.Subscriber.ID, SessionID: c.Session.ID, LeadTime: c.LeadTime}
}

// CandidateResult pairs a candidate with what happened to it.
type CandidateResult struct {
	Candidate Candidate
	Outcome   Outcome
	Err       error
}

// Messenger delivers one message through the push channel.
type Messenger interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// WeatherProvider returns the forecast for a business-calendar date, or nil.
type WeatherProvider interface {
	Forecast(ctx context.Context, day string) *models.WeatherReport
}

type sendLedger interface {
	AlreadySent(ctx context.Context, subscriberID, sessionID string, lead models.LeadTime) (bool, error)
	SentKeys(ctx context.Context, sessionIDs []string) (map[models.LedgerKey]struct{}, error)
	RecordSent(ctx context.Context, record *models.SendRecord) (bool, error)
}

// DispatcherConfig bounds outbound channel usage.
type DispatcherConfig struct {
	Concurrency int
	SendTimeout time.Duration
}

// Dispatcher fans candidates out to the push channel and records confirmed sends.
type Dispatcher struct {
	ledger    sendLedger
	messenger Messenger
	renderer  *MessageRenderer
	weather   WeatherProvider
	metrics   *MetricsService
	cfg       DispatcherConfig
	logger    *zap.Logger
}

type dispatchTask struct {
	candidate Candidate
	weather   *models.WeatherReport
	result    *CandidateResult
}

// NewDispatcher constructs a dispatcher. weather and metrics are optional.
func NewDispatcher(ledger sendLedger, messenger Messenger, renderer *MessageRenderer, weather WeatherProvider, metrics *MetricsService, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ledger:    ledger,
		messenger: messenger,
		renderer:  renderer,
		weather:   weather,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Concurrency returns the bound on simultaneous channel calls.
func (d *Dispatcher) Concurrency() int {
	return d.cfg.Concurrency
}

// Deliver sends one message under the per-call timeout. A timeout is a failure.
func (d *Dispatcher) Deliver(ctx context.Context, msg models.OutboundMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	err := d.messenger.Send(sendCtx, msg)
	d.metrics.ObserveChannelSend(err, time.Since(start))
	return err
}

// Forecasts loads weather for every distinct date; missing forecasts are omitted.
func (d *Dispatcher) Forecasts(ctx context.Context, days []string) map[string]*models.WeatherReport {
	reports := make(map[string]*models.WeatherReport)
	if d.weather == nil {
		return reports
	}
	for _, day := range days {
		if _, seen := reports[day]; seen {
			continue
		}
		reports[day] = d.weather.Forecast(ctx, day)
	}
	return reports
}

// Dispatch delivers every candidate at most once per ledger key. Per-candidate
// failures never abort the batch; only an unreadable ledger does.
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []Candidate) ([]CandidateResult, error) {
	results := make([]CandidateResult, len(candidates))
	if len(candidates) == 0 {
		return results, nil
	}

	sessionIDs := make([]string, 0, len(candidates))
	days := make([]string, 0, len(candidates))
	seenSession := make(map[string]struct{})
	for _, c := range candidates {
		if _, ok := seenSession[c.Session.ID]; ok {
			continue
		}
		seenSession[c.Session.ID] = struct{}{}
		sessionIDs = append(sessionIDs, c.Session.ID)
		days = append(days, c.Session.DateKey())
	}

	sent, err := d.ledger.SentKeys(ctx, sessionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to read send ledger")
	}
	forecasts := d.Forecasts(ctx, days)

	batch := make([]jobs.Job, 0, len(candidates))
	for i, c := range candidates {
		results[i].Candidate = c
		key := c.Key()
		if _, dup := sent[key]; dup {
			results[i].Outcome = OutcomeSkippedDuplicate
			continue
		}
		sent[key] = struct{}{}
		batch = append(batch, jobs.Job{
			ID:   c.Subscriber.ID + "/" + c.Session.ID + "/" + string(c.LeadTime),
			Type: string(c.LeadTime),
			Payload: &dispatchTask{
				candidate: c,
				weather:   forecasts[c.Session.DateKey()],
				result:    &results[i],
			},
		})
	}

	pool := jobs.NewPool("dispatch", d.handle, jobs.PoolConfig{Workers: d.cfg.Concurrency, Logger: d.logger})
	for _, res := range pool.Drain(ctx, batch) {
		if res.Skipped {
			res.Job.Payload.(*dispatchTask).result.Outcome = OutcomeSkippedDeadline
		}
	}

	for _, res := range results {
		d.metrics.RecordNotification(string(res.Candidate.LeadTime), res.Outcome)
	}
	return results, nil
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	task := job.Payload.(*dispatchTask)
	c := task.candidate
	log := d.logger.With(
		zap.String("subscriber_id", c.Subscriber.ID),
		zap.String("session_id", c.Session.ID),
		zap.String("lead_time", string(c.LeadTime)),
	)

	already, err := d.ledger.AlreadySent(ctx, c.Subscriber.ID, c.Session.ID, c.LeadTime)
	if err != nil {
		if ctx.Err() != nil {
			task.result.Outcome = OutcomeSkippedDeadline
			return nil
		}
		task.result.Outcome = OutcomeFailed
		task.result.Err = err
		log.Warn("ledger check failed", zap.Error(err))
		return err
	}
	if already {
		task.result.Outcome = OutcomeSkippedDuplicate
		return nil
	}

	msg := d.renderer.Reminder(c, task.weather)
	if err := d.Deliver(ctx, msg); err != nil {
		task.result.Outcome = OutcomeFailed
		task.result.Err = err
		log.Warn("channel send failed", zap.Error(err))
		return err
	}
	task.result.Outcome = OutcomeSent

	// the message is out; record it even if the run budget just expired
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	recorded, err := d.ledger.RecordSent(recordCtx, &models.SendRecord{
		SubscriberID: c.Subscriber.ID,
		SessionID:    c.Session.ID,
		LeadTime:     c.LeadTime,
		SentAt:       time.Now().UTC(),
	})
	switch {
	case err != nil:
		log.Error("message delivered but not recorded", zap.Error(err))
	case !recorded:
		log.Debug("send already recorded by an overlapping run")
	}
	return nil
}

// Summarize aggregates candidate outcomes.
func Summarize(results []CandidateResult) dto.DispatchSummary {
	outcomes := make([]Outcome, len(results))
	for i, res := range results {
		outcomes[i] = res.Outcome
	}
	return summarizeOutcomes(outcomes)
}

// Attempted counts channel calls; duplicates and unprocessed candidates never reach the channel.
func summarizeOutcomes(outcomes []Outcome) dto.DispatchSummary {
	var summary dto.DispatchSummary
	for _, outcome := range outcomes {
		switch outcome {
		case OutcomeSent:
			summary.Sent++
			summary.Attempted++
		case OutcomeFailed:
			summary.Failed++
			summary.Attempted++
		case OutcomeSkippedDuplicate:
			summary.Duplicates++
		case OutcomeSkippedDeadline:
			summary.Unprocessed++
		}
	}
	return summary
}
