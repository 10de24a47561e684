// Package legacy reads the flat pre-relational contact records and turns them
// into discriminated bundles for the repair engine.
package legacy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"
	"gopkg.in/yaml.v3"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

const (
	kindPersonneLibre = "personne_libre"
	kindProgrammateur = "programmateur"
)

// Source lists the legacy bundles of one organization, sorted by id.
type Source interface {
	Bundles(ctx context.Context, organizationID string) ([]models.LegacyBundle, error)
}

var (
	structureFields = store.Coercion{Bools: []string{"isClient"}}
	personneFields  = store.Coercion{Bools: []string{"prioritaire", "interesse"}}
)

// DecodeRecord converts one raw legacy record. Records with an unknown
// entityType are returned as-is and fail LegacyBundle.Validate.
func DecodeRecord(doc map[string]any) (models.LegacyBundle, error) {
	kind, _ := doc["entityType"].(string)

	switch models.BundleKind(kind) {
	case models.BundleKindStructure, models.BundleKindMixed, models.BundleKindPersonne:
		var b models.LegacyBundle
		if err := store.Decode(normalizeBundle(doc), &b); err != nil {
			return models.LegacyBundle{}, fmt.Errorf("failed to decode bundle: %w", err)
		}
		return b, nil
	}

	switch kind {
	case kindPersonneLibre:
		return decodePersonneLibre(doc)
	case kindProgrammateur, "":
		var p models.LegacyProgrammateur
		if err := store.Decode(normalizeProgrammateur(doc), &p); err != nil {
			return models.LegacyBundle{}, fmt.Errorf("failed to decode programmateur: %w", err)
		}
		return p.ToBundle(), nil
	}

	id, _ := doc["id"].(string)
	return models.LegacyBundle{ID: id, EntityType: models.BundleKind(kind)}, nil
}

// personne_libre records carry the person either under "personne" or flat.
func decodePersonneLibre(doc map[string]any) (models.LegacyBundle, error) {
	id, _ := doc["id"].(string)
	source := doc
	if nested, ok := doc["personne"].(map[string]any); ok {
		source = nested
	}

	var p models.LegacyPersonne
	if err := store.Decode(personneFields.Apply(source), &p); err != nil {
		return models.LegacyBundle{}, fmt.Errorf("failed to decode personne_libre: %w", err)
	}
	return models.LegacyBundle{ID: id, EntityType: models.BundleKindPersonne, Personnes: []models.LegacyPersonne{p}}, nil
}

// normalizeBundle rewrites the shapes older clients stored before the bundle is decoded:
// the nested address object, "nom" for the structure name, and the record level
// tags and client flag.
func normalizeBundle(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}

	if raw, ok := doc["structure"].(map[string]any); ok {
		s := flattenStructure(raw)
		if isBlank(s["tags"]) {
			if qualification, ok := doc["qualification"].(map[string]any); ok && !isBlank(qualification["tags"]) {
				s["tags"] = qualification["tags"]
			} else if !isBlank(doc["tags"]) {
				s["tags"] = doc["tags"]
			}
		}
		if _, ok := s["isClient"]; !ok {
			if client, ok := doc["client"]; ok {
				s["isClient"] = client
			}
		}
		out["structure"] = structureFields.Apply(s)
	}

	if list, ok := doc["personnes"].([]any); ok {
		personnes := make([]any, 0, len(list))
		for _, item := range list {
			if p, ok := item.(map[string]any); ok {
				item = map[string]any(personneFields.Apply(p))
			}
			personnes = append(personnes, item)
		}
		out["personnes"] = personnes
	}
	return out
}

func normalizeProgrammateur(doc map[string]any) map[string]any {
	v, ok := doc["structureCodePostal"]
	if !ok {
		return doc
	}
	out := make(map[string]any, len(doc))
	for k, val := range doc {
		out[k] = val
	}
	out["structureCodePostal"] = text(v)
	return out
}

// flattenStructure reads adresse either as a line or as {adresse, codePostal, ville, pays}.
// Values of the nested object win over the flat ones.
func flattenStructure(raw map[string]any) store.Document {
	s := make(store.Document, len(raw))
	for k, v := range raw {
		s[k] = v
	}

	if isBlank(s["raisonSociale"]) && !isBlank(s["nom"]) {
		s["raisonSociale"] = s["nom"]
	}
	if addr, ok := s["adresse"].(map[string]any); ok {
		s["adresse"] = text(addr["adresse"])
		for _, k := range []string{"codePostal", "ville", "pays"} {
			if v := text(addr[k]); v != "" {
				s[k] = v
			}
		}
	}
	if v, ok := s["codePostal"]; ok {
		s["codePostal"] = text(v)
	}
	return s
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func decodeAll(ctx context.Context, logger ectologger.Logger, records []map[string]any) []models.LegacyBundle {
	bundles := make([]models.LegacyBundle, 0, len(records))
	for _, record := range records {
		b, err := DecodeRecord(record)
		if err != nil {
			// keep the record so it is reported as skipped instead of silently dropped
			id, _ := record["id"].(string)
			kind, _ := record["entityType"].(string)
			logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"record_id":   id,
				"entity_type": kind,
			}).Warn("Undecodable legacy record")
			b = models.LegacyBundle{ID: id, EntityType: models.BundleKind(kind), DecodeError: err.Error()}
		}
		bundles = append(bundles, b)
	}
	sort.SliceStable(bundles, func(i, j int) bool { return bundles[i].ID < bundles[j].ID })
	return bundles
}

// StoreSource reads the legacy records kept in the entity store.
type StoreSource struct {
	store      store.Store
	collection string
	logger     ectologger.Logger
}

func NewStoreSource(s store.Store, logger ectologger.Logger) *StoreSource {
	return &StoreSource{store: s, collection: store.CollectionLegacyContacts, logger: logger}
}

func (s *StoreSource) Bundles(ctx context.Context, organizationID string) ([]models.LegacyBundle, error) {
	ctx, span := tracing.StartSpan(ctx, "legacy.StoreSource.Bundles")
	defer span.End()

	docs, err := s.store.List(ctx, organizationID, s.collection)
	if err != nil {
		return nil, err
	}
	records := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc)
	}
	return decodeAll(ctx, s.logger, records), nil
}

// File is the layout of a legacy export. A bare list of records is accepted too.
type File struct {
	OrganizationID string           `yaml:"organizationId,omitempty"`
	Records        []map[string]any `yaml:"records"`
}

// FileSource reads legacy records from a YAML or JSON export.
type FileSource struct {
	path   string
	logger ectologger.Logger
}

func NewFileSource(path string, logger ectologger.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Bundles loads the file. An export bound to another organization is rejected.
func (s *FileSource) Bundles(ctx context.Context, organizationID string) ([]models.LegacyBundle, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy file %s: %w", s.path, err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse legacy file %s: %w", s.path, err)
	}
	if file.OrganizationID != "" && file.OrganizationID != organizationID {
		return nil, fmt.Errorf("legacy file %s belongs to organization %s", s.path, file.OrganizationID)
	}

	return decodeAll(ctx, s.logger, file.Records), nil
}

// Parse reads a legacy export. JSON is valid YAML, so one decoder serves both.
func Parse(data []byte) (*File, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return &File{}, nil
	}

	var file File
	if node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&file.Records); err != nil {
			return nil, err
		}
		return &file, nil
	}
	if err := node.Content[0].Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}
