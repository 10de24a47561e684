package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store/memory"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name      string
		record    map[string]any
		kind      models.BundleKind
		valid     bool
		structure string
		personnes int
	}{
		{
			name: "structure bundle",
			record: map[string]any{
				"id":         "u1",
				"entityType": "structure",
				"structure":  map[string]any{"raisonSociale": "La Cigale", "ville": "Paris"},
				"personnes":  []any{map[string]any{"prenom": "Léa", "nom": "Martin"}},
			},
			kind: models.BundleKindStructure, valid: true, structure: "La Cigale", personnes: 1,
		},
		{
			name: "personne_libre nested",
			record: map[string]any{
				"id":         "u2",
				"entityType": "personne_libre",
				"personne":   map[string]any{"prenom": "Tom", "email": "tom@x.fr"},
			},
			kind: models.BundleKindPersonne, valid: true, personnes: 1,
		},
		{
			name:   "personne_libre flat",
			record: map[string]any{"id": "u3", "entityType": "personne_libre", "nom": "Ana Lopez"},
			kind:   models.BundleKindPersonne, valid: true, personnes: 1,
		},
		{
			name: "programmateur without entityType",
			record: map[string]any{
				"id":                     "prog-1",
				"nom":                    "Durand",
				"structureRaisonSociale": "Festival Test",
				"structureVille":         "Paris",
			},
			kind: models.BundleKindMixed, valid: true, structure: "Festival Test", personnes: 1,
		},
		{
			name:   "unknown kind",
			record: map[string]any{"id": "u4", "entityType": "artiste"},
			kind:   "artiste",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := DecodeRecord(tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, b.EntityType)
			if !tt.valid {
				assert.Error(t, b.Validate())
				return
			}
			require.NoError(t, b.Validate())
			if tt.structure != "" {
				assert.Equal(t, tt.structure, b.Structure.RaisonSociale)
			}
			assert.Len(t, b.Personnes, tt.personnes)
		})
	}
}

func TestStoreSource_Bundles(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Insert(ctx, "org", store.CollectionLegacyContacts, store.Document{
		"id": "b", "entityType": "personne_libre", "prenom": "Tom",
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "org", store.CollectionLegacyContacts, store.Document{
		"id": "a", "structureRaisonSociale": "Festival Test", "nom": "Léa Martin",
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "other", store.CollectionLegacyContacts, store.Document{"id": "c", "entityType": "structure"})
	require.NoError(t, err)

	bundles, err := NewStoreSource(s, logging.Discard()).Bundles(ctx, "org")
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "a", bundles[0].ID)
	assert.Equal(t, models.BundleKindMixed, bundles[0].EntityType)
	assert.Equal(t, "b", bundles[1].ID)
}

func TestFileSource_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "export.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
organizationId: org
records:
  - id: p1
    structureRaisonSociale: Festival Test
    structureVille: Paris
    prenom: Léa
    nom: Martin
    email: LEA@festival.fr
  - id: s1
    entityType: structure
    structure:
      raisonSociale: Le Trianon
      siret: "123 456 789 00012"
    personnes:
      - nom: Tom Durand
`), 0o600))

	bundles, err := NewFileSource(yamlPath, logging.Discard()).Bundles(context.Background(), "org")
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "LEA@festival.fr", bundles[0].Personnes[0].Email)
	assert.Equal(t, "123 456 789 00012", bundles[1].Structure.Siret)

	_, err = NewFileSource(yamlPath, logging.Discard()).Bundles(context.Background(), "another-org")
	assert.Error(t, err)

	jsonPath := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"x","entityType":"personne_libre","email":"a@b.com"}]`), 0o600))

	bundles, err = NewFileSource(jsonPath, logging.Discard()).Bundles(context.Background(), "org")
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, models.BundleKindPersonne, bundles[0].EntityType)
	assert.Equal(t, "a@b.com", bundles[0].Personnes[0].Email)
}

func TestDecodeRecord_NestedAddressAndRecordFallbacks(t *testing.T) {
	b, err := DecodeRecord(map[string]any{
		"id":         "u1",
		"entityType": "structure",
		"structure": map[string]any{
			"nom":        "Festival Test",
			"codePostal": "00000",
			"adresse": map[string]any{
				"adresse":    "12 rue des Lilas",
				"codePostal": float64(75011),
				"ville":      "Paris",
				"pays":       "France",
			},
		},
		"tags":          []any{"ancien"},
		"qualification": map[string]any{"tags": []any{"festival", "jazz"}},
		"client":        "true",
		"personnes": []any{
			map[string]any{"prenom": "Léa", "email": "lea@festival.fr", "prioritaire": "true", "interesse": ""},
		},
	})
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	s := b.Structure
	assert.Equal(t, "Festival Test", s.RaisonSociale)
	assert.Equal(t, "12 rue des Lilas", s.Adresse)
	assert.Equal(t, "75011", s.CodePostal)
	assert.Equal(t, "Paris", s.Ville)
	assert.Equal(t, "France", s.Pays)
	assert.Equal(t, []string{"festival", "jazz"}, s.Tags)
	assert.True(t, s.IsClient)

	require.Len(t, b.Personnes, 1)
	assert.True(t, b.Personnes[0].Prioritaire)
	assert.False(t, b.Personnes[0].Interesse)
}

func TestDecodeRecord_FlatAddressAndRecordTags(t *testing.T) {
	b, err := DecodeRecord(map[string]any{
		"id":         "u2",
		"entityType": "structure",
		"structure":  map[string]any{"raisonSociale": "La Cigale", "adresse": "120 bd de Rochechouart", "ville": "Paris", "isClient": false},
		"tags":       []any{"salle"},
		"client":     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "120 bd de Rochechouart", b.Structure.Adresse)
	assert.Equal(t, "Paris", b.Structure.Ville)
	assert.Equal(t, []string{"salle"}, b.Structure.Tags)
	assert.False(t, b.Structure.IsClient, "the structure's own flag wins over the record's")
}

func TestStoreSource_UndecodableRecordKeepsEntityType(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Insert(ctx, "org", store.CollectionLegacyContacts, store.Document{
		"id":         "u9",
		"entityType": "structure",
		"structure":  map[string]any{"raisonSociale": map[string]any{"fr": "Festival"}},
	})
	require.NoError(t, err)

	bundles, err := NewStoreSource(s, logging.Discard()).Bundles(ctx, "org")
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, models.BundleKindStructure, bundles[0].EntityType)
	assert.NotEmpty(t, bundles[0].DecodeError)

	err = bundles[0].Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `entityType "structure" could not be decoded`)
	assert.NotContains(t, err.Error(), "unknown entityType")
}

func TestFileSource_NestedAddressInYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: u1
  entityType: structure
  structure:
    raisonSociale: Festival Test
    adresse:
      ville: Paris
      codePostal: 75011
  personnes:
    - email: lea@festival.fr
`), 0o600))

	bundles, err := NewFileSource(path, logging.Discard()).Bundles(context.Background(), "org")
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.NoError(t, bundles[0].Validate())
	assert.Equal(t, "Paris", bundles[0].Structure.Ville)
	assert.Equal(t, "75011", bundles[0].Structure.CodePostal)
	assert.Empty(t, bundles[0].Structure.Adresse)
}
