package repair

import (
	"fmt"
	"io"
	"strings"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/fingerprint"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/liaison"
)

type Phase string

const (
	PhaseAnalysis   Phase = "analysis"
	PhaseCorrection Phase = "correction"
	PhaseCreation   Phase = "creation"
	PhaseSummary    Phase = "summary"
)

// WriteEntry is one line of the write log: what a live run commits, or what a dry run would.
type WriteEntry struct {
	Phase Phase    `json:"phase"`
	Op    store.Op `json:"op"`
}

// timestamps differ between two runs on the same state
var digestExclusions = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
	"dateDebut": true,
	"dateFin":   true,
}

// Digest fingerprints a write log, ignoring timestamps.
func Digest(log []WriteEntry) string {
	return fingerprint.GenerateWithExclusions(log, digestExclusions)
}

type Created struct {
	Structures  int `json:"structures"`
	Liaisons    int `json:"liaisons"`
	Reactivated int `json:"reactivated"`
}

func (c Created) Total() int {
	return c.Structures + c.Liaisons + c.Reactivated
}

// Report is the outcome of one run. It is returned even when batches failed.
type Report struct {
	OrganizationID string `json:"organizationId"`
	RunID          string `json:"runId"`
	DryRun         bool   `json:"dryRun"`

	Processed         int     `json:"processed"`
	Checked           int     `json:"checked"`
	Corrected         int     `json:"corrected"`
	Created           Created `json:"created"`
	UpdatedStructures int     `json:"updatedStructures"`
	AlreadyLinked     int     `json:"alreadyLinked"`
	Skipped           int     `json:"skipped"`
	Writes            int     `json:"writes"`
	FailedBatches     int     `json:"failedBatches"`

	States    map[PersonneState]int `json:"states"`
	Unmatched []UnmatchedRecord     `json:"unmatched"`
	Conflicts []RecordError         `json:"conflicts"`
	Errors    []RecordError         `json:"errors"`

	WriteLog []WriteEntry `json:"writeLog"`
	Digest   string       `json:"digest"`
}

// Failed is true when at least one batch was rolled back.
func (r *Report) Failed() bool {
	return r.FailedBatches > 0
}

func newReport(organizationID, runID string, dryRun bool, plan *Plan) *Report {
	return &Report{
		OrganizationID: organizationID,
		RunID:          runID,
		DryRun:         dryRun,
		Processed:      plan.Bundles,
		Checked:        plan.Personnes,
		AlreadyLinked:  plan.AlreadyLinked,
		Skipped:        len(plan.Errors) + len(plan.Conflicts),
		Unmatched:      append([]UnmatchedRecord{}, plan.Unmatched...),
		Conflicts:      append([]RecordError{}, plan.Conflicts...),
		Errors:         append([]RecordError{}, plan.Errors...),
		WriteLog:       []WriteEntry{},
	}
}

// printer writes the phase-grouped operator output.
type printer struct {
	w io.Writer
}

func (p printer) phase(phase Phase) {
	fmt.Fprintf(p.w, "\n== %s ==\n", strings.ToUpper(string(phase)))
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, "  "+format+"\n", args...)
}

func (p printer) analysis(plan *Plan, dryRun bool) {
	p.phase(PhaseAnalysis)
	if dryRun {
		p.line("mode: dry-run (no write is committed)")
	}
	p.line("personnes: %d (%d with an active liaison)", plan.Personnes, plan.AttachedNow)
	p.line("legacy records: %d", plan.Bundles)
	p.line("flags to correct: %d now, %d after liaison creation", len(plan.Flags)-plan.deferredFlags(), plan.deferredFlags())
	p.line("structures to create: %d, to complete: %d", len(plan.NewStructures), len(plan.structureUpdates))
	p.line("liaisons to create: %d, to reactivate: %d, already linked: %d",
		plan.countLiaisons(liaison.ActionCreate), plan.countLiaisons(liaison.ActionReactivate), plan.AlreadyLinked)
	p.line("unmatched personnes: %d, conflicts: %d, invalid records: %d", len(plan.Unmatched), len(plan.Conflicts), len(plan.Errors))
}

func (p printer) ops(dryRun bool, ops []store.Op) {
	verb := "write"
	if dryRun {
		verb = "would write"
	}
	for _, op := range ops {
		p.line("%s %s %s/%s", verb, op.Kind, op.Collection, op.ID)
	}
}

func (p printer) summary(r *Report) {
	p.phase(PhaseSummary)
	p.line("processed=%d corrected=%d created=%d skipped=%d errors=%d",
		r.Processed, r.Corrected, r.Created.Total(), r.Skipped, len(r.Errors))
	p.line("structures created=%d completed=%d, liaisons created=%d reactivated=%d",
		r.Created.Structures, r.UpdatedStructures, r.Created.Liaisons, r.Created.Reactivated)
	p.line("unmatched=%d conflicts=%d failed batches=%d writes=%d",
		len(r.Unmatched), len(r.Conflicts), r.FailedBatches, r.Writes)
	for _, u := range r.Unmatched {
		p.line("unmatched: %s in %s (%s)", u.Personne, u.BundleID, u.Reason)
	}
	for _, c := range r.Conflicts {
		p.line("conflict: %s", c.Message)
	}
	for _, e := range r.Errors {
		p.line("error [%s]: %s", e.Kind, e.Message)
	}
	p.line("digest: %s", r.Digest)
}
