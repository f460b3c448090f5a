// Package sweep runs the monitoring sweep: it re-scrapes every tracked
// product, reconciles the observation into the stored record, persists it and
// notifies subscribers of price events.
//
// Each product is an isolated unit of work. A unit never fails the sweep;
// its result is captured as an Outcome in the Report. Only loading the
// product list is fatal.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"price-monitor/internal/domain"
	"price-monitor/internal/idhash"
	"price-monitor/internal/logging"
	"price-monitor/internal/notify"
	"price-monitor/internal/observability"
	"price-monitor/internal/reconcile"
	"price-monitor/internal/scrape"
	"price-monitor/internal/storage"
)

var (
	// ErrLoadProducts wraps a failure to load the product list.
	ErrLoadProducts = errors.New("load tracked products")

	// ErrSweepInProgress is returned by TryRun while another sweep is running.
	ErrSweepInProgress = errors.New("sweep already in progress")
)

// Notifier delivers a notification to its recipients.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// Options for creating an Orchestrator.
type Options struct {
	// Required collaborators
	Products   storage.ProductStore
	Scraper    scrape.Scraper
	Reconciler *reconcile.Reconciler
	Notifier   Notifier

	// Observations is an optional analytics sink.
	Observations storage.ObservationStore

	// Concurrency caps units running at once. 0 means unbounded.
	Concurrency int

	// ScrapeTimeout bounds each scrape call. 0 means no per-scrape timeout.
	ScrapeTimeout time.Duration

	Logger  logrus.FieldLogger
	Metrics *observability.Metrics

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs sweeps. It is safe for concurrent use; concurrent sweeps
// are serialised per product by source URL.
type Orchestrator struct {
	products      storage.ProductStore
	scraper       scrape.Scraper
	reconciler    *reconcile.Reconciler
	notifier      Notifier
	observations  storage.ObservationStore
	concurrency   int
	scrapeTimeout time.Duration

	logger  logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string

	locks   *keyLocker
	running atomic.Bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		products:      opts.Products,
		scraper:       opts.Scraper,
		reconciler:    opts.Reconciler,
		notifier:      opts.Notifier,
		observations:  opts.Observations,
		concurrency:   opts.Concurrency,
		scrapeTimeout: opts.ScrapeTimeout,
		logger:        logging.OrDiscard(opts.Logger).WithField("component", "sweep"),
		metrics:       opts.Metrics,
		now:           opts.Now,
		newID:         opts.NewID,
		locks:         newKeyLocker(),
	}
	if o.reconciler == nil {
		o.reconciler = reconcile.New(nil)
	}
	if o.metrics == nil {
		o.metrics = observability.DefaultMetrics
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}

// Running reports whether a sweep started by TryRun is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// TryRun starts a sweep unless one started by TryRun is still running,
// in which case it returns ErrSweepInProgress.
func (o *Orchestrator) TryRun(ctx context.Context) (*Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.SweepsSkipped.Inc()
		return nil, ErrSweepInProgress
	}
	defer o.running.Store(false)
	return o.Run(ctx)
}

// Run executes one sweep with a fresh sweep ID.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	return o.RunWithID(ctx, o.newID())
}

// RunWithID executes one sweep under the given ID. Re-running a sweep ID
// whose samples were already stored does not append them twice.
func (o *Orchestrator) RunWithID(ctx context.Context, sweepID string) (*Report, error) {
	report := &Report{SweepID: sweepID, StartedAt: o.now()}
	log := o.logger.WithField("sweep_id", sweepID)

	o.metrics.SweepInProgress.Inc()
	defer o.metrics.SweepInProgress.Dec()

	products, err := o.products.FindAll(ctx)
	if err != nil {
		report.FinishedAt = o.now()
		o.metrics.RecordSweep("failed", 0, report.Duration(), report.FinishedAt)
		log.WithError(err).Error("sweep aborted")
		return nil, fmt.Errorf("%w: %w", ErrLoadProducts, err)
	}
	log.WithField("products", len(products)).Info("sweep started")

	report.Outcomes = make([]Outcome, len(products))
	observations := make([]*domain.PriceObservation, len(products))

	g := new(errgroup.Group)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, p := range products {
		g.Go(func() error {
			report.Outcomes[i], observations[i] = o.runUnit(ctx, sweepID, p)
			return nil
		})
	}
	_ = g.Wait() // units never return errors

	report.ObservationsFailed = o.recordObservations(ctx, log, sweepID, observations)
	report.FinishedAt = o.now()
	report.tally()

	status := "ok"
	if report.Cancelled > 0 {
		status = "cancelled"
	}
	o.metrics.RecordSweep(status, len(products), report.Duration(), report.FinishedAt)

	log.WithFields(logrus.Fields{
		"processed":       report.Processed,
		"scrape_failed":   report.ScrapeFailed,
		"notified":        report.Notified,
		"dispatch_failed": report.DispatchFailed,
		"persist_failed":  report.PersistFailed,
		"cancelled":       report.Cancelled,
		"duration":        report.Duration().String(),
	}).Info("sweep finished")

	return report, nil
}

// unit tracks one product through the state machine.
type unit struct {
	out Outcome
	log logrus.FieldLogger
}

func (u *unit) to(s State) {
	u.out.State = s
	u.out.Trace = append(u.out.Trace, s)
}

func (u *unit) fail(s State, err error) {
	u.to(s)
	if u.out.Err == "" && err != nil {
		u.out.Err = err.Error()
	}
}

// runUnit processes one product. It never panics the group and never returns an error.
func (o *Orchestrator) runUnit(ctx context.Context, sweepID string, stored *domain.TrackedProduct) (Outcome, *domain.PriceObservation) {
	u := &unit{
		out: Outcome{SourceURL: stored.SourceURL},
		log: o.logger.WithFields(logrus.Fields{"sweep_id": sweepID, "source_url": stored.SourceURL}),
	}
	u.to(StatePending)
	defer func() { o.metrics.RecordOutcome(string(u.out.State), string(u.out.Event)) }()

	if ctx.Err() != nil {
		u.fail(StateCancelled, ctx.Err())
		return u.out, nil
	}

	unlock := o.locks.lock(stored.SourceURL)
	defer unlock()

	obs := o.scrape(ctx, sweepID, stored.SourceURL)
	if ctx.Err() != nil {
		u.fail(StateCancelled, ctx.Err())
		return u.out, nil
	}
	if obs.Failed() {
		u.fail(StateScrapeFailed, obs.ScrapeErr)
		u.log.WithError(obs.ScrapeErr).Warn("scrape failed")
	} else {
		u.to(StateScraped)
	}

	res, saved, err := o.reconcileAndPersist(ctx, stored, obs)
	if res != nil {
		u.to(StateReconciled)
		u.out.Event = res.Event
	}
	if err != nil {
		if res == nil {
			u.fail(StateReconcileFailed, err)
			u.log.WithError(err).Error("reconcile failed")
		} else {
			u.fail(StatePersistFailed, err)
			u.log.WithError(err).Error("persist failed")
		}
		return u.out, nil
	}
	u.out.Updated = saved
	stored = res.Previous

	o.dispatch(ctx, u, stored, saved)
	u.to(StateDone)

	u.log.WithFields(logrus.Fields{
		"event": u.out.Event,
		"state": u.out.Trace[len(u.out.Trace)-2],
	}).Debug("product processed")

	return u.out, observation(sweepID, obs, saved, u.out.Event)
}

// observation is the analytics row of a finished unit. Price and stock are
// what this sweep saw: a failed scrape leaves both empty, a listing shown
// without a price leaves the price zero.
func observation(sweepID string, obs reconcile.Observation, saved *domain.TrackedProduct, event domain.EventKind) *domain.PriceObservation {
	po := &domain.PriceObservation{
		ObservationID: idhash.ComputeObservationID(saved.SourceURL, sweepID),
		SweepID:       sweepID,
		SourceURL:     saved.SourceURL,
		ObservedAt:    obs.ObservedAt,
		Currency:      saved.Currency,
		Event:         event,
	}
	if obs.Failed() {
		return po
	}
	po.StockStatus = obs.Snapshot.StockStatus
	if obs.Snapshot.HasPrice() {
		po.Price = obs.Snapshot.CurrentPrice
	}
	return po
}

// reconcileAndPersist merges obs into stored and writes the result. If the
// stored history moved on since stored was loaded (another sweep appended),
// it reloads the record and reconciles once more against it. A nil result
// means reconciliation failed; otherwise a non-nil error is a persist failure.
func (o *Orchestrator) reconcileAndPersist(ctx context.Context, stored *domain.TrackedProduct, obs reconcile.Observation) (*unitResult, *domain.TrackedProduct, error) {
	for attempt := 0; ; attempt++ {
		res, err := o.reconciler.Reconcile(stored, obs)
		if err != nil {
			return nil, nil, err
		}
		out := &unitResult{Event: res.Event, Previous: stored}

		saved, err := o.products.UpsertByURL(ctx, stored.SourceURL, res.Product)
		if err == nil {
			return out, saved, nil
		}
		if !errors.Is(err, storage.ErrHistoryRewrite) || attempt > 0 {
			return out, nil, fmt.Errorf("persist: %w", err)
		}

		stored, err = o.products.GetByURL(ctx, stored.SourceURL)
		if err != nil {
			return out, nil, fmt.Errorf("reload product: %w", err)
		}
	}
}

// unitResult is what a unit keeps from reconciliation.
type unitResult struct {
	Event    domain.EventKind
	Previous *domain.TrackedProduct // record the event was classified against
}

// scrape calls the scraper with the optional per-scrape timeout.
func (o *Orchestrator) scrape(ctx context.Context, sweepID, sourceURL string) reconcile.Observation {
	scrapeCtx := ctx
	if o.scrapeTimeout > 0 {
		var cancel context.CancelFunc
		scrapeCtx, cancel = context.WithTimeout(ctx, o.scrapeTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := o.scraper.Scrape(scrapeCtx, sourceURL)
	o.metrics.RecordScrape(time.Since(start).Seconds(), err)

	if err == nil && snap == nil {
		err = fmt.Errorf("%w: empty snapshot", scrape.ErrSourceUnavailable)
	}
	return reconcile.Observation{
		Snapshot:   snap,
		ScrapeErr:  err,
		ObservedAt: o.now(),
		SweepID:    sweepID,
	}
}

// dispatch notifies subscribers when the event calls for it.
func (o *Orchestrator) dispatch(ctx context.Context, u *unit, before, saved *domain.TrackedProduct) {
	recipients := saved.SubscriberEmails()
	if !u.out.Event.IsNotifiable() || len(recipients) == 0 || o.notifier == nil {
		u.to(StateNoNotification)
		return
	}

	err := o.notifier.Dispatch(ctx, notify.Notification{
		Kind:          u.out.Event,
		Product:       saved,
		PreviousPrice: before.CurrentPrice,
		Recipients:    recipients,
	})
	o.metrics.RecordNotification(string(u.out.Event), err)
	if err != nil {
		u.fail(StateDispatchFailed, fmt.Errorf("dispatch: %w", err))
		u.log.WithError(err).Warn("dispatch failed")
		return
	}
	u.to(StateNotified)
}

// recordObservations writes completed units to the analytics sink. Failures
// are logged and counted only. The write outlives cancellation so that
// finished units are still recorded. Observations already stored under
// sweepID (a retried sweep) are skipped.
func (o *Orchestrator) recordObservations(ctx context.Context, log logrus.FieldLogger, sweepID string, all []*domain.PriceObservation) int {
	if o.observations == nil {
		return 0
	}
	ctx = context.WithoutCancel(ctx)

	recorded := make(map[string]struct{})
	existing, err := o.observations.GetBySweepID(ctx, sweepID)
	if err != nil {
		log.WithError(err).Warn("load recorded observations failed")
	}
	for _, obs := range existing {
		recorded[obs.ObservationID] = struct{}{}
	}

	var batch []*domain.PriceObservation
	for _, obs := range all {
		if obs == nil {
			continue
		}
		if _, ok := recorded[obs.ObservationID]; ok {
			continue
		}
		batch = append(batch, obs)
	}
	if skipped := len(existing); skipped > 0 {
		log.WithField("observations", skipped).Debug("observations already recorded for sweep")
	}
	if len(batch) == 0 {
		return 0
	}

	if err := o.observations.InsertBulk(ctx, batch); err != nil {
		log.WithError(err).WithField("observations", len(batch)).Warn("record observations failed")
		return len(batch)
	}
	return 0
}
