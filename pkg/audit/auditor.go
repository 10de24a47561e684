package audit

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/metrics"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// DatasetLoader reads every contact of an organization.
type DatasetLoader interface {
	LoadDataset(ctx context.Context, organizationID string) (*models.Dataset, error)
}

// Auditor scans one organization and reports inconsistencies. It never writes.
type Auditor struct {
	loader DatasetLoader
	logger ectologger.Logger
	now    func() time.Time
}

func NewAuditor(loader DatasetLoader, logger ectologger.Logger) *Auditor {
	return &Auditor{
		loader: loader,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *Auditor) Run(ctx context.Context, organizationID string) (*models.AuditReport, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Auditor.Run")
	defer span.End()

	start := time.Now()
	ds, err := a.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).WithField("organization_id", organizationID).Error("Failed to load contacts for audit")
		return nil, err
	}

	report := Analyze(ds, a.now())

	byType := make(map[string]int, len(report.IssuesByType))
	for _, t := range []models.IssueType{
		models.IssueUnidirectionalReference,
		models.IssueOrphanReference,
		models.IssueLibreFlagDrift,
		models.IssueDuplicateLiaison,
		models.IssueUnreadableDocument,
	} {
		byType[string(t)] = report.IssuesByType[t]
	}
	metrics.RecordAudit(organizationID, byType, time.Since(start).Seconds())

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"organization_id": organizationID,
		"structures":      report.Counts.TotalStructures,
		"personnes":       report.Counts.TotalPersonnes,
		"liaisons":        report.Counts.TotalLiaisons,
		"unreadable":      report.Counts.UnreadableDocuments,
		"issues":          len(report.Issues),
	}).Info("Audit completed")

	return report, nil
}
