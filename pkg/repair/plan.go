// Package repair backfills structures and liaisons from legacy records and
// corrects the cached isPersonneLibre flags. Every step is idempotent.
package repair

import (
	"fmt"
	"sort"
	"time"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/apperrors"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/identity"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/liaison"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/normalizers"
)

// PersonneState tracks the flag correction of one personne during a run.
type PersonneState string

const (
	StateUnvisited      PersonneState = "UNVISITED"
	StateLiaisonDerived PersonneState = "LIAISON_DERIVED"
	StateFlagCorrected  PersonneState = "FLAG_CORRECTED"
)

const (
	reasonNoMatch   = "no matching personne"
	reasonAmbiguous = "ambiguous match"
	reasonNoKey     = "no email and no name to match on"
)

// UnmatchedRecord is a legacy personne sub-record left unlinked.
type UnmatchedRecord struct {
	BundleID    string `json:"bundleId"`
	StructureID string `json:"structureId,omitempty"`
	Personne    string `json:"personne"`
	Reason      string `json:"reason"`
}

// RecordError is a legacy record, stored document or batch the run could not apply.
type RecordError struct {
	BundleID   string         `json:"bundleId,omitempty"`
	DocumentID string         `json:"documentId,omitempty"`
	Batch      *int           `json:"batch,omitempty"`
	Kind       apperrors.Kind `json:"kind"`
	Message    string         `json:"message"`
}

// FlagCorrection is a planned isPersonneLibre write. Deferred corrections
// depend on liaisons planned by the same run and wait for them to commit.
type FlagCorrection struct {
	PersonneID string   `json:"personneId"`
	From       bool     `json:"from"`
	Libre      bool     `json:"libre"`
	Deferred   bool     `json:"deferred"`
	DependsOn  []string `json:"dependsOn,omitempty"`
}

// PlannedLiaison is a liaison the run creates or reactivates.
type PlannedLiaison struct {
	Action  liaison.Action
	Liaison *models.Liaison
	Changes store.Document
	// NewStructure is set when the liaison points at a structure created by the same run.
	NewStructure bool
}

type structureUpdate struct {
	id      string
	changes store.Document
}

// Plan is every write a run intends to make, computed from one snapshot.
type Plan struct {
	OrganizationID string
	Now            time.Time

	Personnes     int
	Bundles       int
	AttachedNow   int
	AlreadyLinked int

	States           map[string]PersonneState
	NewStructures    []*models.Structure
	structureUpdates []structureUpdate
	Liaisons         []PlannedLiaison
	Flags            []FlagCorrection

	Unmatched []UnmatchedRecord
	Conflicts []RecordError
	Errors    []RecordError
}

// ComputeActiveLiaisonSet marks every personne referenced by an active liaison as attached.
func ComputeActiveLiaisonSet(liaisons []*models.Liaison) map[string]bool {
	attached := make(map[string]bool, len(liaisons))
	for _, l := range liaisons {
		if l.Actif {
			attached[l.PersonneID] = true
		}
	}
	return attached
}

// NewPlan analyses one organization. The dataset is used as scratch state and
// must not be reused afterwards.
func NewPlan(organizationID string, ds *models.Dataset, bundles []models.LegacyBundle, now time.Time) *Plan {
	p := &Plan{
		OrganizationID: organizationID,
		Now:            now,
		Personnes:      len(ds.Personnes),
		Bundles:        len(bundles),
		States:         make(map[string]PersonneState, len(ds.Personnes)),
	}
	for _, per := range ds.Personnes {
		p.States[per.ID] = StateUnvisited
	}

	pl := &planner{
		plan:       p,
		index:      identity.NewIndex(ds.Structures),
		matcher:    newMatcher(ds.Personnes),
		pairs:      make(map[models.Pair][]*models.Liaison),
		created:    make(map[string]bool),
		updateAt:   make(map[string]int),
		unreadable: len(ds.UndecodableIDs(store.CollectionStructures)),
	}
	p.Errors = append(p.Errors, unreadableStructures(ds)...)
	for _, l := range ds.Liaisons {
		pair := models.Pair{StructureID: l.StructureID, PersonneID: l.PersonneID}
		pl.pairs[pair] = append(pl.pairs[pair], l)
	}

	attachedNow := ComputeActiveLiaisonSet(ds.Liaisons)
	p.AttachedNow = len(attachedNow)

	pl.deriveMissingStructures(bundles)
	pl.correctFlags(ds.Personnes, attachedNow)
	return p
}

type planner struct {
	plan     *Plan
	index    *identity.Index
	matcher  *matcher
	pairs    map[models.Pair][]*models.Liaison
	created  map[string]bool
	updateAt map[string]int

	// an unreadable structure may be the match of any candidate: nothing is created while one exists
	unreadable int
}

func unreadableStructures(ds *models.Dataset) []RecordError {
	var out []RecordError
	for _, u := range ds.Undecodable {
		if u.Collection != store.CollectionStructures {
			continue
		}
		out = append(out, RecordError{
			DocumentID: u.ID,
			Kind:       apperrors.KindValidation,
			Message:    fmt.Sprintf("structure %s could not be read: %s", u.ID, u.Error),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

func (pl *planner) deriveMissingStructures(bundles []models.LegacyBundle) {
	p := pl.plan
	for _, b := range bundles {
		if err := b.Validate(); err != nil {
			p.Errors = append(p.Errors, RecordError{BundleID: b.ID, Kind: apperrors.KindValidation, Message: err.Error()})
			continue
		}

		if !b.HasStructure() {
			// lone personnes are only checked: a missing one is reported, never created
			for _, sub := range b.Personnes {
				sub = sub.Normalized()
				if _, reason := pl.matcher.match(sub); reason != "" {
					p.Unmatched = append(p.Unmatched, UnmatchedRecord{BundleID: b.ID, Personne: sub.Label(), Reason: reason})
				}
			}
			continue
		}

		res, err := identity.Resolve(p.OrganizationID, b.Structure.Candidate(b.ID), pl.index, p.Now)
		if err != nil {
			recErr := RecordError{BundleID: b.ID, Kind: apperrors.KindOf(err), Message: err.Error()}
			if apperrors.IsConflict(err) {
				p.Conflicts = append(p.Conflicts, recErr)
			} else {
				p.Errors = append(p.Errors, recErr)
			}
			continue
		}
		if res.Created && pl.unreadable > 0 {
			err := identity.BlockedByUnreadable(b.ID, pl.unreadable)
			p.Errors = append(p.Errors, RecordError{BundleID: b.ID, Kind: apperrors.KindOf(err), Message: err.Error()})
			continue
		}

		s := res.Structure
		switch {
		case res.Created:
			pl.index.Add(s)
			pl.created[s.ID] = true
			p.NewStructures = append(p.NewStructures, s)
		case len(res.Changes) > 0 && !pl.created[s.ID]:
			pl.addStructureUpdate(s.ID, res.Changes)
		}

		for _, sub := range b.Personnes {
			sub = sub.Normalized()
			personne, reason := pl.matcher.match(sub)
			if personne == nil {
				p.Unmatched = append(p.Unmatched, UnmatchedRecord{BundleID: b.ID, StructureID: s.ID, Personne: sub.Label(), Reason: reason})
				continue
			}
			pl.link(s.ID, personne.ID, attrsFrom(sub))
		}
	}
}

func (pl *planner) addStructureUpdate(id string, changes store.Document) {
	p := pl.plan
	if i, ok := pl.updateAt[id]; ok {
		for k, v := range changes {
			p.structureUpdates[i].changes[k] = v
		}
		return
	}
	pl.updateAt[id] = len(p.structureUpdates)
	merged := store.Document{}
	for k, v := range changes {
		merged[k] = v
	}
	p.structureUpdates = append(p.structureUpdates, structureUpdate{id: id, changes: merged})
}

func (pl *planner) link(structureID, personneID string, attrs models.LiaisonAttrs) {
	p := pl.plan
	pair := models.Pair{StructureID: structureID, PersonneID: personneID}
	d := liaison.Decide(p.OrganizationID, structureID, personneID, pl.pairs[pair], attrs, p.Now)

	switch d.Action {
	case liaison.ActionNone:
		p.AlreadyLinked++
		return
	case liaison.ActionCreate:
		pl.pairs[pair] = append(pl.pairs[pair], d.Liaison)
	case liaison.ActionReactivate:
		for i, l := range pl.pairs[pair] {
			if l.ID == d.Liaison.ID {
				pl.pairs[pair][i] = d.Liaison
			}
		}
	}
	p.Liaisons = append(p.Liaisons, PlannedLiaison{
		Action:       d.Action,
		Liaison:      d.Liaison,
		Changes:      d.Changes,
		NewStructure: pl.created[structureID],
	})
}

// correctFlags compares every cached flag with the active set after the planned liaisons.
func (pl *planner) correctFlags(personnes []*models.Personne, attachedNow map[string]bool) {
	p := pl.plan

	dependsOn := make(map[string][]string)
	for _, planned := range p.Liaisons {
		dependsOn[planned.Liaison.PersonneID] = append(dependsOn[planned.Liaison.PersonneID], planned.Liaison.ID)
	}

	for _, per := range personnes {
		p.States[per.ID] = StateLiaisonDerived

		attached := attachedNow[per.ID] || len(dependsOn[per.ID]) > 0
		libre := !attached
		if per.IsPersonneLibre == libre {
			p.States[per.ID] = StateFlagCorrected
			continue
		}

		correction := FlagCorrection{PersonneID: per.ID, From: per.IsPersonneLibre, Libre: libre}
		if attached && !attachedNow[per.ID] {
			correction.Deferred = true
			correction.DependsOn = dependsOn[per.ID]
		}
		p.Flags = append(p.Flags, correction)
	}
}

func attrsFrom(sub models.LegacyPersonne) models.LiaisonAttrs {
	var attrs models.LiaisonAttrs
	if sub.Fonction != "" {
		fonction := sub.Fonction
		attrs.Fonction = &fonction
	}
	if sub.Prioritaire {
		prioritaire := true
		attrs.Prioritaire = &prioritaire
	}
	if sub.Interesse {
		interesse := true
		attrs.Interesse = &interesse
	}
	return attrs
}

// CorrectionOps are the flag writes that hold on the current liaisons alone.
func (p *Plan) CorrectionOps() []store.Op {
	var ops []store.Op
	for _, f := range p.Flags {
		if f.Deferred {
			continue
		}
		ops = append(ops, p.flagOp(f))
	}
	return ops
}

// StructureOps inserts the new structures, then fills the empty fields of matched ones.
func (p *Plan) StructureOps() ([]store.Op, error) {
	ops := make([]store.Op, 0, len(p.NewStructures)+len(p.structureUpdates))
	for _, s := range p.NewStructures {
		op, err := store.NewInsertOp(store.CollectionStructures, s.ID, s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	for _, u := range p.structureUpdates {
		ops = append(ops, store.NewUpdateOp(store.CollectionStructures, u.id, u.changes))
	}
	return ops, nil
}

// LiaisonOps builds the liaison writes. Liaisons pointing at a new structure
// whose insert did not commit are returned as skipped.
func (p *Plan) LiaisonOps(structuresCommitted map[string]bool) ([]store.Op, []PlannedLiaison, error) {
	var ops []store.Op
	var skipped []PlannedLiaison
	for _, planned := range p.Liaisons {
		l := planned.Liaison
		if planned.NewStructure && !structuresCommitted[store.CollectionStructures+"/"+l.StructureID] {
			skipped = append(skipped, planned)
			continue
		}
		if planned.Action == liaison.ActionReactivate {
			ops = append(ops, store.NewUpdateOp(store.CollectionLiaisons, l.ID, planned.Changes))
			continue
		}
		op, err := store.NewInsertOp(store.CollectionLiaisons, l.ID, l)
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, op)
	}
	return ops, skipped, nil
}

// DeferredFlagOps are the flag writes unlocked by committed liaisons.
func (p *Plan) DeferredFlagOps(liaisonsCommitted map[string]bool) []store.Op {
	var ops []store.Op
	for _, f := range p.Flags {
		if !f.Deferred {
			continue
		}
		for _, id := range f.DependsOn {
			if liaisonsCommitted[store.CollectionLiaisons+"/"+id] {
				ops = append(ops, p.flagOp(f))
				break
			}
		}
	}
	return ops
}

func (p *Plan) flagOp(f FlagCorrection) store.Op {
	return store.NewUpdateOp(store.CollectionPersonnes, f.PersonneID, store.Document{
		"isPersonneLibre": f.Libre,
		"updatedAt":       p.Now,
	})
}

// StateCounts counts personnes per state.
func (p *Plan) StateCounts() map[PersonneState]int {
	counts := make(map[PersonneState]int, 3)
	for _, s := range p.States {
		counts[s]++
	}
	return counts
}

func (p *Plan) markCorrected(personneIDs map[string]bool) {
	for id := range personneIDs {
		if _, ok := p.States[id]; ok {
			p.States[id] = StateFlagCorrected
		}
	}
}

// Count helpers for the report.
func (p *Plan) countLiaisons(action liaison.Action) int {
	n := 0
	for _, l := range p.Liaisons {
		if l.Action == action {
			n++
		}
	}
	return n
}

func (p *Plan) deferredFlags() int {
	n := 0
	for _, f := range p.Flags {
		if f.Deferred {
			n++
		}
	}
	return n
}

// matcher finds the existing personne of a legacy sub-record: email first,
// then the normalized "prenom nom".
type matcher struct {
	byEmail map[string][]*models.Personne
	byName  map[string][]*models.Personne
}

func newMatcher(personnes []*models.Personne) *matcher {
	m := &matcher{
		byEmail: make(map[string][]*models.Personne),
		byName:  make(map[string][]*models.Personne),
	}
	for _, per := range personnes {
		if email := normalizers.NormalizeEmail(per.ContactEmail()); email != "" {
			m.byEmail[email] = append(m.byEmail[email], per)
		}
		if name := normalizers.NormalizeFullName(per.Prenom, per.Nom); name != "" {
			m.byName[name] = append(m.byName[name], per)
		}
	}
	return m
}

// match returns the personne or the reason there is none. Several candidates
// are never guessed between.
func (m *matcher) match(sub models.LegacyPersonne) (*models.Personne, string) {
	if email := normalizers.NormalizeEmail(sub.Email); email != "" {
		if found := m.byEmail[email]; len(found) > 0 {
			return single(found)
		}
	}

	name := ""
	if sub.Prenom != "" && sub.Nom != "" {
		name = normalizers.NormalizeFullName(sub.Prenom, sub.Nom)
	}
	if name == "" {
		if sub.Email == "" {
			return nil, reasonNoKey
		}
		return nil, reasonNoMatch
	}
	if found := m.byName[name]; len(found) > 0 {
		return single(found)
	}
	return nil, reasonNoMatch
}

func single(found []*models.Personne) (*models.Personne, string) {
	ids := make(map[string]*models.Personne, len(found))
	for _, per := range found {
		ids[per.ID] = per
	}
	if len(ids) > 1 {
		return nil, reasonAmbiguous
	}
	return found[0], ""
}
