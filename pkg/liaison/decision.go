// Package liaison manages the join records between structures and personnes.
package liaison

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

var liaisonNamespace = uuid.MustParse("a3d5c7e9-1b2f-5a4c-8e6d-0f1a2b3c4d5e")

// ID derives the liaison id of a pair. One pair maps to one id, so two writers
// creating the same pair collide on insert instead of duplicating it.
func ID(organizationID, structureID, personneID string) string {
	return uuid.NewSHA1(liaisonNamespace, []byte(fmt.Sprintf("%s|%s|%s", organizationID, structureID, personneID))).String()
}

type Action string

const (
	ActionNone       Action = "none"
	ActionCreate     Action = "create"
	ActionReactivate Action = "reactivate"
)

// Decision is what CreateOrReactivate has to write for a pair.
type Decision struct {
	Action  Action
	Liaison *models.Liaison
	// Changes is the field patch of a reactivation.
	Changes store.Document
}

// Decide picks the write for a pair given its existing liaisons: keep the active
// one, else reactivate the oldest inactive one, else create a new liaison.
func Decide(organizationID, structureID, personneID string, existing []*models.Liaison, attrs models.LiaisonAttrs, now time.Time) Decision {
	pair := make([]*models.Liaison, 0, len(existing))
	for _, l := range existing {
		if l.StructureID == structureID && l.PersonneID == personneID {
			pair = append(pair, l)
		}
	}
	sort.SliceStable(pair, func(i, j int) bool {
		if !pair[i].CreatedAt.Equal(pair[j].CreatedAt) {
			return pair[i].CreatedAt.Before(pair[j].CreatedAt)
		}
		return pair[i].ID < pair[j].ID
	})

	for _, l := range pair {
		if l.Actif {
			return Decision{Action: ActionNone, Liaison: l}
		}
	}

	if len(pair) > 0 {
		l := *pair[0]
		return Decision{Action: ActionReactivate, Liaison: &l, Changes: reactivate(&l, attrs, now)}
	}

	l := &models.Liaison{
		ID:             ID(organizationID, structureID, personneID),
		OrganizationID: organizationID,
		StructureID:    structureID,
		PersonneID:     personneID,
		Actif:          true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	apply(l, attrs)
	if l.DateDebut == nil {
		start := now
		l.DateDebut = &start
	}
	return Decision{Action: ActionCreate, Liaison: l}
}

func reactivate(l *models.Liaison, attrs models.LiaisonAttrs, now time.Time) store.Document {
	start := now
	if attrs.DateDebut != nil {
		start = *attrs.DateDebut
	}
	l.Actif = true
	l.DateDebut = &start
	l.DateFin = nil
	l.UpdatedAt = now

	changes := store.Document{
		"actif":     true,
		"dateDebut": start,
		"dateFin":   nil,
		"updatedAt": now,
	}
	if attrs.Fonction != nil {
		changes["fonction"] = *attrs.Fonction
	}
	if attrs.Prioritaire != nil {
		changes["prioritaire"] = *attrs.Prioritaire
	}
	if attrs.Interesse != nil {
		changes["interesse"] = *attrs.Interesse
	}
	if attrs.Notes != nil {
		changes["notes"] = *attrs.Notes
	}
	apply(l, attrs)
	return changes
}

func apply(l *models.Liaison, attrs models.LiaisonAttrs) {
	if attrs.Fonction != nil {
		l.Fonction = *attrs.Fonction
	}
	if attrs.Prioritaire != nil {
		l.Prioritaire = *attrs.Prioritaire
	}
	if attrs.Interesse != nil {
		l.Interesse = *attrs.Interesse
	}
	if attrs.Notes != nil {
		l.Notes = *attrs.Notes
	}
	if attrs.DateDebut != nil {
		start := *attrs.DateDebut
		l.DateDebut = &start
	}
}

// IsLibre reports whether none of the liaisons of a personne is active.
func IsLibre(liaisons []*models.Liaison) bool {
	for _, l := range liaisons {
		if l.Actif {
			return false
		}
	}
	return true
}
