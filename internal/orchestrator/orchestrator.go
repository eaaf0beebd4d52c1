// Package orchestrator drives collection jobs through the trade
// pipeline in day-sized windows.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/enrichment"
	"dex-wallet-tracker/internal/storage"
	"dex-wallet-tracker/internal/validator"
)

// TradeCollector fetches trades for a wallet within a time window.
// Implemented by collector.Collector.
type TradeCollector interface {
	Collect(ctx context.Context, walletAddress string, startMs, endMs int64) ([]*domain.Trade, error)
}

// Enricher runs one pricing pass over stored unenriched trades.
// Implemented by enrichment.Engine.
type Enricher interface {
	Run(ctx context.Context) (*enrichment.Result, error)
}

// EventCollector finds news around enriched trades. Implemented by
// events.Collector.
type EventCollector interface {
	Collect(ctx context.Context, trades []*domain.Trade) (int, error)
}

// ProgressSink receives job snapshots after every persisted change.
// Implemented by the websocket broadcaster; a nil sink disables
// notifications.
type ProgressSink interface {
	NotifyJob(job *domain.CollectionJob)
}

// Options configures the Orchestrator.
type Options struct {
	// WindowSize splits the job's date range; defaults to 24h.
	WindowSize time.Duration
	// InterWindowDelay paces provider calls between windows.
	InterWindowDelay time.Duration
	// Sink is optional.
	Sink ProgressSink
}

// Orchestrator runs collection jobs window by window, checkpointing
// progress after each one.
type Orchestrator struct {
	jobs      storage.JobStore
	trades    storage.TradeStore
	collector TradeCollector
	enricher  Enricher
	events    EventCollector
	logger    logrus.FieldLogger

	windowSize time.Duration
	delay      time.Duration
	sink       ProgressSink

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator.
func New(jobs storage.JobStore, trades storage.TradeStore, collector TradeCollector, enricher Enricher, events EventCollector, opts Options, logger logrus.FieldLogger) *Orchestrator {
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = 24 * time.Hour
	}
	return &Orchestrator{
		jobs:       jobs,
		trades:     trades,
		collector:  collector,
		enricher:   enricher,
		events:     events,
		logger:     logger,
		windowSize: windowSize,
		delay:      opts.InterWindowDelay,
		sink:       opts.Sink,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Run executes the job to completion. The job transitions to
// processing immediately and to completed when every window has been
// attempted; a window that fails is logged, recorded, and skipped
// rather than aborting the job. Only an unrunnable job (missing,
// already terminal) or a persistence failure on the initial transition
// returns an error, and context cancellation fails the job.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}

	job.Status = domain.JobStatusProcessing
	if err := o.persist(ctx, job); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	log := o.logger.WithFields(logrus.Fields{"job_id": job.ID, "address": job.Address})

	windowStart := job.StartDate
	if job.Progress.LastProcessedDate > windowStart {
		windowStart = job.Progress.LastProcessedDate
	}

	failedWindows := 0
	for windowStart < job.EndDate {
		windowEnd := windowStart + o.windowSize.Milliseconds()
		if windowEnd > job.EndDate {
			windowEnd = job.EndDate
		}

		if err := ctx.Err(); err != nil {
			return o.fail(job, fmt.Sprintf("canceled at window %d: %v", windowStart, err))
		}

		if err := o.processWindow(ctx, job, windowStart, windowEnd); err != nil {
			failedWindows++
			log.WithFields(logrus.Fields{
				"window_start": windowStart,
				"window_end":   windowEnd,
			}).WithError(err).Warn("window failed, skipping")
		}

		job.Progress.LastProcessedDate = windowEnd
		if err := o.persist(ctx, job); err != nil {
			log.WithError(err).Warn("checkpoint persist failed")
		}

		windowStart = windowEnd

		if o.delay > 0 && windowStart < job.EndDate {
			if err := o.sleep(ctx, o.delay); err != nil {
				return o.fail(job, fmt.Sprintf("canceled between windows: %v", err))
			}
		}
	}

	job.Status = domain.JobStatusCompleted
	if failedWindows > 0 {
		job.Error = fmt.Sprintf("%d window(s) failed and were skipped", failedWindows)
	}
	if err := o.persist(ctx, job); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	log.WithFields(logrus.Fields{
		"trades_collected": job.Progress.TradesCollected,
		"trades_enriched":  job.Progress.TradesEnriched,
		"events_collected": job.Progress.EventsCollected,
		"failed_windows":   failedWindows,
	}).Info("job completed")

	return nil
}

// processWindow runs collect, validate, store, enrich, and event
// collection for one window, accumulating progress on the job.
func (o *Orchestrator) processWindow(ctx context.Context, job *domain.CollectionJob, startMs, endMs int64) error {
	collected, err := o.collector.Collect(ctx, job.Address, startMs, endMs)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	job.Progress.TradesCollected += len(collected)
	if len(collected) == 0 {
		return nil
	}

	result := validator.Validate(collected)
	for _, msg := range result.Errors {
		o.logger.WithField("job_id", job.ID).Warn(msg)
	}
	if !result.Valid {
		return nil
	}

	stats, err := o.trades.Upsert(ctx, result.Trades)
	if err != nil {
		return fmt.Errorf("store trades: %w", err)
	}
	job.Progress.TradesProcessed += stats.Stored

	enrichResult, err := o.enricher.Run(ctx)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	job.Progress.TradesEnriched += enrichResult.Enriched
	for _, msg := range enrichResult.Errors {
		o.logger.WithField("job_id", job.ID).Warn(msg)
	}

	// Event collection needs USD values, so re-read the window's trades
	// after enrichment instead of reusing the raw collected slice.
	stored, err := o.trades.GetByWallet(ctx, job.Address, startMs, endMs)
	if err != nil {
		return fmt.Errorf("reload trades: %w", err)
	}
	var enriched []*domain.Trade
	for _, t := range stored {
		if t.IsEnriched {
			enriched = append(enriched, t)
		}
	}

	if len(enriched) > 0 {
		n, err := o.events.Collect(ctx, enriched)
		if err != nil {
			return fmt.Errorf("collect events: %w", err)
		}
		job.Progress.EventsCollected += n
	}

	return nil
}

// fail transitions the job to failed with the given message.
func (o *Orchestrator) fail(job *domain.CollectionJob, msg string) error {
	job.Status = domain.JobStatusFailed
	job.Error = msg

	// Best effort: the job may be unreachable for the same reason the
	// run failed.
	if err := o.persist(context.Background(), job); err != nil {
		o.logger.WithField("job_id", job.ID).WithError(err).Error("persist failed status")
	}

	return fmt.Errorf("job %s failed: %s", job.ID, msg)
}

// persist updates the job row and notifies the sink.
func (o *Orchestrator) persist(ctx context.Context, job *domain.CollectionJob) error {
	job.UpdatedAt = o.now().UnixMilli()
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}
	if o.sink != nil {
		o.sink.NotifyJob(job)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
