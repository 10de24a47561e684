package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// Statement is one parameterized Cypher query.
type Statement struct {
	Name   string
	Cypher string
	Params map[string]any
}

type StatementRunner interface {
	RunStatements(ctx context.Context, statements []Statement) error
}

type DatasetLoader interface {
	LoadDataset(ctx context.Context, organizationID string) (*models.Dataset, error)
}

const (
	mergeStructures = `
		UNWIND $rows AS row
		MERGE (s:Structure {id: row.id, organization_id: $organizationId})
		SET s += row`

	mergePersonnes = `
		UNWIND $rows AS row
		MERGE (p:Personne {id: row.id, organization_id: $organizationId})
		SET p += row`

	mergeLiaisons = `
		UNWIND $rows AS row
		MATCH (s:Structure {id: row.structure_id, organization_id: $organizationId})
		MATCH (p:Personne {id: row.personne_id, organization_id: $organizationId})
		MERGE (s)-[r:LIAISON {id: row.id}]->(p)
		SET r += row`

	dropInactiveLiaisons = `
		MATCH (:Structure {organization_id: $organizationId})-[r:LIAISON]->(:Personne {organization_id: $organizationId})
		WHERE NOT r.id IN $activeIds
		DELETE r`
)

// BuildStatements renders an organization as node and edge upserts. Only active
// liaisons whose two ends exist become edges; every other LIAISON edge is removed.
func BuildStatements(ds *models.Dataset) []Statement {
	structures := make([]map[string]any, 0, len(ds.Structures))
	exists := make(map[string]bool, len(ds.Structures)+len(ds.Personnes))
	for _, s := range ds.Structures {
		exists["s/"+s.ID] = true
		structures = append(structures, map[string]any{
			"id":             s.ID,
			"raison_sociale": s.RaisonSociale,
			"type":           s.Type,
			"ville":          s.Ville,
			"siret":          s.Siret,
			"is_client":      s.IsClient,
		})
	}

	personnes := make([]map[string]any, 0, len(ds.Personnes))
	for _, p := range ds.Personnes {
		exists["p/"+p.ID] = true
		personnes = append(personnes, map[string]any{
			"id":                p.ID,
			"prenom":            p.Prenom,
			"nom":               p.Nom,
			"email":             p.ContactEmail(),
			"is_personne_libre": p.IsPersonneLibre,
		})
	}

	liaisons := make([]map[string]any, 0, len(ds.Liaisons))
	activeIDs := make([]string, 0, len(ds.Liaisons))
	for _, l := range ds.Liaisons {
		if !l.Actif || !exists["s/"+l.StructureID] || !exists["p/"+l.PersonneID] {
			continue
		}
		row := map[string]any{
			"id":           l.ID,
			"structure_id": l.StructureID,
			"personne_id":  l.PersonneID,
			"fonction":     l.Fonction,
			"prioritaire":  l.Prioritaire,
			"interesse":    l.Interesse,
		}
		if l.DateDebut != nil {
			row["date_debut"] = l.DateDebut.UTC().Format(time.RFC3339)
		}
		liaisons = append(liaisons, row)
		activeIDs = append(activeIDs, l.ID)
	}

	org := ds.OrganizationID
	return []Statement{
		{Name: "structures", Cypher: mergeStructures, Params: map[string]any{"organizationId": org, "rows": structures}},
		{Name: "personnes", Cypher: mergePersonnes, Params: map[string]any{"organizationId": org, "rows": personnes}},
		{Name: "liaisons", Cypher: mergeLiaisons, Params: map[string]any{"organizationId": org, "rows": liaisons}},
		{Name: "inactive liaisons", Cypher: dropInactiveLiaisons, Params: map[string]any{"organizationId": org, "activeIds": activeIDs}},
	}
}

// ProjectionResult counts what was sent to the graph.
type ProjectionResult struct {
	Structures int `json:"structures"`
	Personnes  int `json:"personnes"`
	Liaisons   int `json:"liaisons"`
}

// Projector mirrors one organization into the graph database.
type Projector struct {
	loader DatasetLoader
	runner StatementRunner
	logger ectologger.Logger
}

func NewProjector(loader DatasetLoader, runner StatementRunner, logger ectologger.Logger) *Projector {
	return &Projector{loader: loader, runner: runner, logger: logger}
}

func (p *Projector) Project(ctx context.Context, organizationID string) (*ProjectionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.Project")
	defer span.End()

	ds, err := p.loader.LoadDataset(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	statements := BuildStatements(ds)
	if err := p.runner.RunStatements(ctx, statements); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("organization_id", organizationID).Error("Graph projection failed")
		return nil, err
	}

	result := &ProjectionResult{
		Structures: len(ds.Structures),
		Personnes:  len(ds.Personnes),
		Liaisons:   len(statements[2].Params["rows"].([]map[string]any)),
	}
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"organization_id": organizationID,
		"structures":      result.Structures,
		"personnes":       result.Personnes,
		"liaisons":        result.Liaisons,
	}).Info("Projected contacts into graph")
	return result, nil
}
