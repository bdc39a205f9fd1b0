// Package materialize turns active rules into task instances. Each rule is
// processed under its own lease, against its own checkpoint, so one failing
// or faulting rule never holds back the others.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alexanderramin/recur/internal/db"
	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/lease"
	"github.com/alexanderramin/recur/internal/recurrence"
	"github.com/alexanderramin/recur/internal/repository"
)

var (
	// ErrRuleFlagged is returned for on-demand runs of a rule that awaits
	// manual review.
	ErrRuleFlagged = errors.New("rule flagged for manual review")
	// ErrRuleInactive is returned for on-demand runs of a deactivated rule.
	ErrRuleInactive = errors.New("rule is inactive")
	// ErrRuleFault marks a rule that got past validation but cannot be
	// evaluated. Such rules are flagged on the first fault.
	ErrRuleFault = errors.New("rule fault")
)

// State is a rule's position in a run.
type State string

const (
	StateIdle       State = "idle"
	StateLeased     State = "leased"
	StateComputing  State = "computing"
	StateCommitting State = "committing"
	StateFailed     State = "failed"
)

// RuleSource supplies rules to the scheduler.
type RuleSource interface {
	GetByID(ctx context.Context, id string) (domain.RuleSpec, error)
	ListActive(ctx context.Context) ([]domain.RuleSpec, error)
}

// TaskStoreFactory and LedgerFactory bind the task store and ledger to the
// transaction an occurrence commits in.
type (
	TaskStoreFactory func(tx db.DBTX) repository.TaskStore
	LedgerFactory    func(tx db.DBTX) repository.Ledger
)

// Deps are the scheduler's collaborators.
type Deps struct {
	Rules       RuleSource
	Checkpoints repository.CheckpointRepo
	UoW         db.UnitOfWork
	Locker      lease.Locker
	TaskStore   TaskStoreFactory
	Ledger      LedgerFactory
	Logger      zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler is the materialization driver.
type Scheduler struct {
	rules       RuleSource
	checkpoints repository.CheckpointRepo
	uow         db.UnitOfWork
	locker      lease.Locker
	tasks       TaskStoreFactory
	ledger      LedgerFactory
	log         zerolog.Logger
	now         func() time.Time
	tracer      trace.Tracer

	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter
}

func NewScheduler(deps Deps, cfg Config) *Scheduler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TaskStore == nil {
		deps.TaskStore = func(tx db.DBTX) repository.TaskStore { return repository.NewSQLiteTaskStore(tx) }
	}
	if deps.Ledger == nil {
		deps.Ledger = func(tx db.DBTX) repository.Ledger { return repository.NewSQLiteLedger(tx) }
	}
	cfg = cfg.withDefaults()
	return &Scheduler{
		rules:       deps.Rules,
		checkpoints: deps.Checkpoints,
		uow:         deps.UoW,
		locker:      deps.Locker,
		tasks:       deps.TaskStore,
		ledger:      deps.Ledger,
		log:         deps.Logger.With().Str("component", "materialize").Logger(),
		now:         deps.Now,
		tracer:      otel.Tracer("github.com/alexanderramin/recur/internal/materialize"),
		cfg:         cfg,
		limiter:     rate.NewLimiter(limitFor(cfg), burstFor(cfg)),
	}
}

// Apply swaps the run configuration. Runs already in flight finish with the
// configuration they started with.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.WorkerID == "" {
		cfg.WorkerID = s.cfg.WorkerID
	}
	s.cfg = cfg.withDefaults()
	s.limiter.SetLimit(limitFor(s.cfg))
	s.limiter.SetBurst(burstFor(s.cfg))
	s.log.Info().
		Int("lookahead_days", s.cfg.LookaheadDays).
		Int("workers", s.cfg.Workers).
		Int("max_occurrences_per_run", s.cfg.MaxOccurrencesPerRun).
		Msg("scheduler config applied")
}

func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func limitFor(cfg Config) rate.Limit {
	if cfg.CreateRatePerSec <= 0 {
		return rate.Inf
	}
	return rate.Limit(cfg.CreateRatePerSec)
}

func burstFor(cfg Config) int {
	if cfg.CreateRatePerSec < 1 {
		return 1
	}
	return int(cfg.CreateRatePerSec)
}

// RunOnce processes every active rule once, at most cfg.Workers at a time.
// Per-rule failures are reported, not returned; the error is non-nil only
// when the candidate set cannot be loaded.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	cfg := s.Config()
	ctx, span := s.tracer.Start(ctx, "materialize.run")
	defer span.End()

	report := Report{StartedAt: s.now()}
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("listing active rules: %w", err)
	}

	results := make([]RuleReport, len(rules))
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, rule := range rules {
		g.Go(func() error {
			results[i] = s.safeProcess(ctx, rule, cfg, false)
			return nil
		})
	}
	_ = g.Wait()

	for _, rr := range results {
		report.add(rr)
	}
	report.Duration = s.now().Sub(report.StartedAt)
	span.SetAttributes(
		attribute.Int("rules.considered", report.Considered),
		attribute.Int("tasks.created", report.TasksCreated),
		attribute.Int("rules.failed", report.Failed),
	)
	s.log.Info().
		Int("considered", report.Considered).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("flagged", report.Flagged).
		Int("tasks_created", report.TasksCreated).
		Int("already_seen", report.AlreadySeen).
		Dur("duration", report.Duration).
		Msg("materialization run complete")
	return report, nil
}

// RunRule materializes one rule on demand. Backoff is ignored; the lease and
// ledger are not.
func (s *Scheduler) RunRule(ctx context.Context, ruleID string) (RuleReport, error) {
	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return RuleReport{}, err
	}
	if !rule.IsActive {
		return RuleReport{RuleID: ruleID}, fmt.Errorf("rule %s: %w", ruleID, ErrRuleInactive)
	}
	rr := s.safeProcess(ctx, rule, s.Config(), true)
	switch rr.Outcome {
	case OutcomeNeedsReview:
		return rr, fmt.Errorf("rule %s: %w", ruleID, ErrRuleFlagged)
	case OutcomeInactive:
		return rr, fmt.Errorf("rule %s: %w", ruleID, ErrRuleInactive)
	}
	return rr, nil
}

// Resume clears a rule's review flag and failure count so the next run
// picks it up again.
func (s *Scheduler) Resume(ctx context.Context, ruleID string) (domain.Checkpoint, error) {
	if _, err := s.rules.GetByID(ctx, ruleID); err != nil {
		return domain.Checkpoint{}, err
	}
	cp, err := s.checkpoints.Get(ctx, ruleID)
	if err != nil {
		return domain.Checkpoint{}, err
	}
	cp = cp.Resumed()
	cp.UpdatedAt = s.now()
	if err := s.checkpoints.Save(ctx, cp); err != nil {
		return domain.Checkpoint{}, err
	}
	s.log.Info().Str("rule_id", ruleID).Msg("rule resumed")
	return cp, nil
}

// Status returns the rule's checkpoint for display.
func (s *Scheduler) Status(ctx context.Context, ruleID string) (domain.Checkpoint, error) {
	return s.checkpoints.Get(ctx, ruleID)
}

// safeProcess isolates a panicking rule: it is flagged and the run goes on.
func (s *Scheduler) safeProcess(ctx context.Context, rule domain.RuleSpec, cfg Config, onDemand bool) (rr RuleReport) {
	defer func() {
		if p := recover(); p != nil {
			rr = s.fault(ctx, rule.ID, fmt.Errorf("%w: panic: %v", ErrRuleFault, p))
		}
	}()
	return s.process(ctx, rule, cfg, onDemand)
}

type ruleRun struct {
	log   zerolog.Logger
	state State
}

func (r *ruleRun) enter(st State) {
	r.log.Debug().Str("from", string(r.state)).Str("to", string(st)).Msg("rule state")
	r.state = st
}

func (s *Scheduler) process(ctx context.Context, rule domain.RuleSpec, cfg Config, onDemand bool) RuleReport {
	ctx, span := s.tracer.Start(ctx, "materialize.rule", trace.WithAttributes(attribute.String("rule.id", rule.ID)))
	defer span.End()

	rr := RuleReport{RuleID: rule.ID}
	run := &ruleRun{log: s.log.With().Str("rule_id", rule.ID).Logger(), state: StateIdle}
	now := s.now()

	// Cheap pre-check so rules in backoff do not churn leases.
	cp, err := s.checkpoints.Get(ctx, rule.ID)
	if err != nil {
		return s.infraFailure(span, run, rr, fmt.Errorf("loading checkpoint: %w", err))
	}
	if skip, outcome := skipReason(cp, now, onDemand); skip {
		rr.Outcome = outcome
		return rr
	}

	// Holder ids are per attempt so two runs in one process still exclude
	// each other.
	holder := cfg.WorkerID + "/" + uuid.NewString()
	held, err := lease.Hold(ctx, s.locker, rule.ID, holder, cfg.LeaseTTL, s.now)
	if err != nil {
		return s.infraFailure(span, run, rr, err)
	}
	if held == nil {
		run.log.Debug().Msg("lease held by another worker")
		rr.Outcome = OutcomeLeaseHeld
		return rr
	}
	run.enter(StateLeased)
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			run.log.Warn().Err(err).Msg("releasing lease")
		}
		run.enter(StateIdle)
	}()

	// Another worker may have moved the checkpoint before we got the lease.
	if cp, err = s.checkpoints.Get(ctx, rule.ID); err != nil {
		return s.infraFailure(span, run, rr, fmt.Errorf("loading checkpoint: %w", err))
	}
	if skip, outcome := skipReason(cp, now, onDemand); skip {
		rr.Outcome = outcome
		return rr
	}

	// The rule itself may have been paused, revised or removed since it was
	// listed.
	current, err := s.rules.GetByID(ctx, rule.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		rr.Outcome = OutcomeInactive
		return rr
	case err != nil:
		return s.infraFailure(span, run, rr, fmt.Errorf("reloading rule: %w", err))
	case !current.IsActive:
		run.log.Debug().Msg("rule deactivated since listing")
		rr.Outcome = OutcomeInactive
		return rr
	}
	rule = current

	run.enter(StateComputing)
	w := windowFor(rule, cp, now, cfg.LookaheadDays)
	dates, err := recurrence.Take(rule, w, cfg.MaxOccurrencesPerRun)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return s.fault(ctx, rule.ID, fmt.Errorf("%w: %w", ErrRuleFault, err))
	}
	span.SetAttributes(attribute.Int("occurrences", len(dates)))

	run.enter(StateCommitting)
	progress := cp
	for _, date := range dates {
		if err := held.KeepAlive(ctx); err != nil {
			// The new holder owns the checkpoint now.
			run.log.Warn().Err(err).Msg("lease lost, stopping rule")
			rr.Outcome = OutcomeLeaseLost
			rr.Err = err
			return rr
		}
		if err := s.throttle(ctx); err != nil {
			return s.interrupted(ctx, run, rr, progress, err)
		}

		due, target := recurrence.Resolve(date, rule.DueDateOffset, rule.TargetDateOffset)
		occ := domain.Occurrence{OccurrenceDate: date, DueDate: due, TargetDate: target}
		created, err := s.commit(ctx, rule, occ)
		if err != nil {
			if ctx.Err() != nil {
				return s.interrupted(ctx, run, rr, progress, err)
			}
			run.enter(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return s.failure(ctx, run, rr, progress, date, err, cfg)
		}
		if created {
			rr.Created++
		} else {
			rr.Seen++
		}
		progress = progress.Advanced(date)
	}

	progress = progress.Succeeded()
	progress.UpdatedAt = s.now()
	if err := s.checkpoints.Save(ctx, progress); err != nil {
		return s.infraFailure(span, run, rr, err)
	}
	rr.Outcome = OutcomeMaterialized
	rr.Checkpoint = progress.LastMaterializedDate
	if rr.Created > 0 {
		run.log.Debug().Int("created", rr.Created).Int("seen", rr.Seen).Msg("rule materialized")
	}
	return rr
}

func skipReason(cp domain.Checkpoint, now time.Time, onDemand bool) (bool, Outcome) {
	switch {
	case cp.NeedsReview:
		return true, OutcomeNeedsReview
	case !onDemand && !cp.Due(now):
		return true, OutcomeBackoff
	}
	return false, ""
}

// windowFor starts after the checkpoint (never before the rule's start date)
// and ends lookaheadDays past today, inclusive.
func windowFor(rule domain.RuleSpec, cp domain.Checkpoint, now time.Time, lookaheadDays int) recurrence.Window {
	from := rule.StartDate
	if cp.LastMaterializedDate != nil {
		if next := domain.AddDays(*cp.LastMaterializedDate, 1); next.After(from) {
			from = next
		}
	}
	today := domain.DateOnly(now.UTC())
	return recurrence.Through(from, domain.AddDays(today, lookaheadDays))
}

// commit creates the task and its ledger entry in one transaction. It reports
// false when the ledger already had the occurrence.
func (s *Scheduler) commit(ctx context.Context, rule domain.RuleSpec, occ domain.Occurrence) (bool, error) {
	var created bool
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		ledger := s.ledger(tx)
		seen, err := ledger.Seen(ctx, rule.ID, occ.OccurrenceDate)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		taskID, err := s.tasks(tx).CreateTaskInstance(ctx, newTask(rule, occ))
		if err != nil {
			return fmt.Errorf("creating task instance: %w", err)
		}
		if err := ledger.Record(ctx, rule.ID, occ.OccurrenceDate, taskID); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("committing %s: %w", occ.OccurrenceDate.Format(domain.DateLayout), err)
	}
	return created, nil
}

func newTask(rule domain.RuleSpec, occ domain.Occurrence) domain.TaskInstance {
	return domain.TaskInstance{
		RuleID:         rule.ID,
		Title:          rule.Title,
		OccurrenceDate: occ.OccurrenceDate,
		DueDate:        occ.DueDate,
		TargetDate:     occ.TargetDate,
		ClientID:       rule.ClientID,
		ServiceID:      rule.ServiceID,
		AssignedTo:     rule.AssignedTo,
		TagID:          rule.TagID,
		Priority:       rule.Priority,
	}
}

func (s *Scheduler) throttle(ctx context.Context) error {
	s.mu.RLock()
	limiter := s.limiter
	s.mu.RUnlock()
	return limiter.Wait(ctx)
}

// failure holds the checkpoint at the committed prefix and schedules a retry,
// or flags the rule once it has failed too many runs in a row.
func (s *Scheduler) failure(ctx context.Context, run *ruleRun, rr RuleReport, progress domain.Checkpoint,
	at time.Time, cause error, cfg Config) RuleReport {
	now := s.now()
	failures := progress.ConsecutiveFailures + 1
	if failures >= cfg.MaxConsecutiveFailures {
		progress = progress.Failed(cause, now).Flagged(cause)
		rr.Outcome = OutcomeFlagged
		run.log.Error().Err(cause).Bool("alert", true).Int("consecutive_failures", failures).
			Msg("rule flagged for manual review")
	} else {
		delay := backoffDelay(failures, cfg)
		progress = progress.Failed(cause, now.Add(delay))
		rr.Outcome = OutcomeFailed
		run.log.Warn().Err(cause).Str("occurrence", at.Format(domain.DateLayout)).
			Int("consecutive_failures", failures).Dur("retry_in", delay).
			Msg("materialization failed, checkpoint held")
	}
	progress.UpdatedAt = now
	if err := s.checkpoints.Save(context.WithoutCancel(ctx), progress); err != nil {
		run.log.Error().Err(err).Msg("saving checkpoint after failure")
	}
	rr.Err = cause
	rr.Checkpoint = progress.LastMaterializedDate
	return rr
}

// interrupted saves the committed prefix without counting a failure. The run
// was cancelled, not broken.
func (s *Scheduler) interrupted(ctx context.Context, run *ruleRun, rr RuleReport, progress domain.Checkpoint, cause error) RuleReport {
	progress.UpdatedAt = s.now()
	if err := s.checkpoints.Save(context.WithoutCancel(ctx), progress); err != nil {
		run.log.Error().Err(err).Msg("saving checkpoint after interruption")
	}
	rr.Outcome = OutcomeFailed
	rr.Err = cause
	rr.Checkpoint = progress.LastMaterializedDate
	return rr
}

func (s *Scheduler) infraFailure(span trace.Span, run *ruleRun, rr RuleReport, err error) RuleReport {
	run.log.Warn().Err(err).Msg("rule skipped")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	rr.Outcome = OutcomeFailed
	rr.Err = err
	return rr
}

// fault flags a rule that cannot be evaluated at all.
func (s *Scheduler) fault(ctx context.Context, ruleID string, cause error) RuleReport {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With().Str("rule_id", ruleID).Logger()
	log.Error().Err(cause).Bool("alert", true).Msg("rule faulted, flagged for manual review")

	rr := RuleReport{RuleID: ruleID, Outcome: OutcomeFlagged, Err: cause}
	cp, err := s.checkpoints.Get(ctx, ruleID)
	if err != nil {
		log.Error().Err(err).Msg("loading checkpoint of faulted rule")
		return rr
	}
	cp = cp.Flagged(cause)
	cp.UpdatedAt = s.now()
	if err := s.checkpoints.Save(ctx, cp); err != nil {
		log.Error().Err(err).Msg("flagging faulted rule")
	}
	rr.Checkpoint = cp.LastMaterializedDate
	return rr
}

// backoffDelay is the wait before attempt failures+1.
func backoffDelay(failures int, cfg Config) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.BackoffInitial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.BackoffMax,
	}
	b.Reset()
	var d time.Duration
	for i := 0; i < failures; i++ {
		d = b.NextBackOff()
	}
	return d
}
