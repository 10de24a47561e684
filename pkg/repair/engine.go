package repair

import (
	"context"
	"io"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	ctxpkg "github.com/MoonWalka/app-booking-2-sub017/pkg/context"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/events"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/legacy"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/liaison"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/metrics"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

const defaultLockTTL = 10 * time.Minute

type DatasetLoader interface {
	LoadDataset(ctx context.Context, organizationID string) (*models.Dataset, error)
}

// BatchWriter is the write side of the entity store used by a run.
type BatchWriter interface {
	BatchedWrite(ctx context.Context, organizationID string, ops []store.Op) (*store.BatchResult, error)
	MaxOpsPerBatch() int
}

type EventEmitter interface {
	EmitLiaisons(ctx context.Context, eventType events.EventType, liaisons []*models.Liaison) error
	EmitPersonneLibreChanged(ctx context.Context, organizationID, personneID string, libre bool) error
}

// Locker serializes live runs of one organization.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// StatsInvalidator drops cached statistics once a run changed the data.
type StatsInvalidator interface {
	InvalidateStatistics(ctx context.Context, organizationID string) error
}

type Options struct {
	DryRun bool
	RunID  string
}

// Engine runs the repair job: analysis, flag correction, structure and liaison creation.
type Engine struct {
	loader  DatasetLoader
	writer  BatchWriter
	source  legacy.Source
	emitter EventEmitter
	locker  Locker
	lockTTL time.Duration
	stats   StatsInvalidator
	logger  ectologger.Logger
	out     io.Writer
	now     func() time.Time
}

func NewEngine(loader DatasetLoader, writer BatchWriter, source legacy.Source, logger ectologger.Logger) *Engine {
	return &Engine{
		loader:  loader,
		writer:  writer,
		source:  source,
		lockTTL: defaultLockTTL,
		logger:  logger,
		out:     io.Discard,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) WithEmitter(emitter EventEmitter) *Engine {
	e.emitter = emitter
	return e
}

func (e *Engine) WithLocker(locker Locker, ttl time.Duration) *Engine {
	e.locker = locker
	if ttl > 0 {
		e.lockTTL = ttl
	}
	return e
}

func (e *Engine) WithStatsInvalidator(stats StatsInvalidator) *Engine {
	e.stats = stats
	return e
}

// WithOutput sets where the phase-grouped progress is printed.
func (e *Engine) WithOutput(w io.Writer) *Engine {
	e.out = w
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run repairs one organization. The error is only set for fatal failures;
// rolled back batches are reported in the Report.
func (e *Engine) Run(ctx context.Context, organizationID string, opts Options) (*Report, error) {
	if err := store.RequireOrganization(organizationID); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	if e.locker == nil || opts.DryRun {
		return e.run(ctx, organizationID, opts)
	}

	var report *Report
	err := e.locker.WithLock(ctx, "repair:"+organizationID, e.lockTTL, func() error {
		var runErr error
		report, runErr = e.run(ctx, organizationID, opts)
		return runErr
	})
	return report, err
}

func (e *Engine) run(ctx context.Context, organizationID string, opts Options) (*Report, error) {
	ctx = ctxpkg.SetOrganizationID(ctx, organizationID)
	ctx = ctxpkg.SetRunID(ctx, opts.RunID)
	ctx, span := tracing.StartSpan(ctx, "repair.Engine.Run")
	defer span.End()

	start := time.Now()
	mode := "live"
	if opts.DryRun {
		mode = "dry-run"
	}
	logger := e.logger.WithContext(ctx).WithFields(map[string]any{
		"organization_id": organizationID,
		"run_id":          opts.RunID,
		"mode":            mode,
	})
	out := printer{w: e.out}

	fail := func(err error) (*Report, error) {
		logger.WithError(err).Error("Repair run aborted")
		metrics.RecordRepairRun(organizationID, mode, "error", time.Since(start).Seconds())
		return nil, err
	}

	// analysis
	ds, err := e.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		return fail(err)
	}
	bundles, err := e.source.Bundles(ctx, organizationID)
	if err != nil {
		return fail(err)
	}

	plan := NewPlan(organizationID, ds, bundles, e.now())
	report := newReport(organizationID, opts.RunID, opts.DryRun, plan)
	out.analysis(plan, opts.DryRun)
	for _, r := range plan.Errors {
		if r.DocumentID != "" {
			metrics.RecordSkipped("unreadable")
			logger.WithField("document_id", r.DocumentID).Warnf("Unreadable stored document: %s", r.Message)
			continue
		}
		metrics.RecordSkipped("invalid")
		logger.WithField("bundle_id", r.BundleID).Warnf("Skipping legacy record: %s", r.Message)
	}
	for _, r := range plan.Conflicts {
		metrics.RecordSkipped("conflict")
		logger.WithField("bundle_id", r.BundleID).Warnf("Conflict left for manual review: %s", r.Message)
	}
	for range plan.Unmatched {
		metrics.RecordSkipped("unmatched")
	}

	// correction
	out.phase(PhaseCorrection)
	correctionOps := plan.CorrectionOps()
	committed, err := e.write(ctx, organizationID, PhaseCorrection, correctionOps, report, opts.DryRun, out)
	if err != nil {
		return fail(err)
	}
	report.Corrected += e.afterFlagWrites(ctx, plan, correctionOps, committed, opts.DryRun)
	out.line("flags corrected: %d", report.Corrected)

	// creation
	out.phase(PhaseCreation)
	structureOps, err := plan.StructureOps()
	if err != nil {
		return fail(err)
	}
	committed, err = e.write(ctx, organizationID, PhaseCreation, structureOps, report, opts.DryRun, out)
	if err != nil {
		return fail(err)
	}
	for _, op := range structureOps {
		if !committed[op.Collection+"/"+op.ID] {
			continue
		}
		if op.Kind == store.OpInsert {
			report.Created.Structures++
		} else {
			report.UpdatedStructures++
		}
	}

	liaisonOps, skipped, err := plan.LiaisonOps(committed)
	if err != nil {
		return fail(err)
	}
	for _, s := range skipped {
		report.Skipped++
		metrics.RecordSkipped("structure_not_committed")
		logger.WithField("liaison_id", s.Liaison.ID).Warn("Skipping liaison: its structure was not committed")
	}
	committed, err = e.write(ctx, organizationID, PhaseCreation, liaisonOps, report, opts.DryRun, out)
	if err != nil {
		return fail(err)
	}
	e.afterLiaisonWrites(ctx, plan, committed, report, opts.DryRun)

	deferredOps := plan.DeferredFlagOps(committed)
	committed, err = e.write(ctx, organizationID, PhaseCreation, deferredOps, report, opts.DryRun, out)
	if err != nil {
		return fail(err)
	}
	report.Corrected += e.afterFlagWrites(ctx, plan, deferredOps, committed, opts.DryRun)
	out.line("structures created: %d, liaisons created: %d, reactivated: %d",
		report.Created.Structures, report.Created.Liaisons, report.Created.Reactivated)

	// summary
	report.States = plan.StateCounts()
	report.Digest = Digest(report.WriteLog)
	out.summary(report)

	if !opts.DryRun && report.Writes > 0 && e.stats != nil {
		if err := e.stats.InvalidateStatistics(ctx, organizationID); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cached statistics")
		}
	}

	outcome := "success"
	if report.Failed() {
		outcome = "partial"
	}
	metrics.RecordRepairRun(organizationID, mode, outcome, time.Since(start).Seconds())
	logger.WithFields(map[string]any{
		"processed":      report.Processed,
		"corrected":      report.Corrected,
		"created":        report.Created.Total(),
		"skipped":        report.Skipped,
		"unmatched":      len(report.Unmatched),
		"conflicts":      len(report.Conflicts),
		"failed_batches": report.FailedBatches,
		"writes":         report.Writes,
	}).Info("Repair run completed")

	return report, nil
}

// write commits ops, or only logs them on a dry run, and returns the committed
// "collection/id" keys. A dry run reports every op as committed.
func (e *Engine) write(ctx context.Context, organizationID string, phase Phase, ops []store.Op, report *Report, dryRun bool, out printer) (map[string]bool, error) {
	committed := make(map[string]bool, len(ops))
	if len(ops) == 0 {
		return committed, nil
	}

	for _, op := range ops {
		report.WriteLog = append(report.WriteLog, WriteEntry{Phase: phase, Op: op})
	}
	out.ops(dryRun, ops)

	if dryRun {
		for _, op := range ops {
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"phase":      phase,
				"kind":       op.Kind,
				"collection": op.Collection,
				"id":         op.ID,
			}).Debug("Dry run: write suppressed")
			committed[op.Collection+"/"+op.ID] = true
		}
		report.Writes += len(ops)
		return committed, nil
	}

	result, err := e.writer.BatchedWrite(ctx, organizationID, ops)
	if err != nil {
		return nil, err
	}

	for _, f := range result.Failures {
		batch := f.Batch
		report.FailedBatches++
		report.Errors = append(report.Errors, RecordError{Batch: &batch, Kind: apperrors.KindStore, Message: f.Err.Error()})
		metrics.RecordBatchFailure(organizationID)
		e.logger.WithContext(ctx).WithError(f.Err).WithFields(map[string]any{
			"phase": phase,
			"batch": f.Batch,
			"ops":   len(f.Ops),
		}).Error("Batch rolled back")
		out.line("batch %d failed and was rolled back: %v", f.Batch, f.Err)
	}

	committed = result.CommittedIDs(ops, e.writer.MaxOpsPerBatch())
	for _, op := range ops {
		if committed[op.Collection+"/"+op.ID] {
			metrics.RecordRepairWrite(op.Collection, string(op.Kind))
		}
	}
	report.Writes += result.CommittedOps
	return committed, nil
}

// afterFlagWrites advances the state machine and emits libre_changed events.
func (e *Engine) afterFlagWrites(ctx context.Context, plan *Plan, ops []store.Op, committed map[string]bool, dryRun bool) int {
	written := make(map[string]bool, len(ops))
	for _, op := range ops {
		if committed[op.Collection+"/"+op.ID] {
			written[op.ID] = true
		}
	}
	plan.markCorrected(written)

	if !dryRun && e.emitter != nil {
		for _, f := range plan.Flags {
			if !written[f.PersonneID] {
				continue
			}
			if err := e.emitter.EmitPersonneLibreChanged(ctx, plan.OrganizationID, f.PersonneID, f.Libre); err != nil {
				e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit personne event")
			}
		}
	}
	return len(written)
}

func (e *Engine) afterLiaisonWrites(ctx context.Context, plan *Plan, committed map[string]bool, report *Report, dryRun bool) {
	var created, reactivated []*models.Liaison
	for _, planned := range plan.Liaisons {
		if !committed[store.CollectionLiaisons+"/"+planned.Liaison.ID] {
			continue
		}
		switch planned.Action {
		case liaison.ActionCreate:
			report.Created.Liaisons++
			created = append(created, planned.Liaison)
		case liaison.ActionReactivate:
			report.Created.Reactivated++
			reactivated = append(reactivated, planned.Liaison)
		}
	}

	if dryRun || e.emitter == nil {
		return
	}
	if err := e.emitter.EmitLiaisons(ctx, events.LiaisonCreated, created); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit liaison.created events")
	}
	if err := e.emitter.EmitLiaisons(ctx, events.LiaisonReactivated, reactivated); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit liaison.reactivated events")
	}
}
