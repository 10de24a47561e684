package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyPersonne_Normalized(t *testing.T) {
	tests := []struct {
		name     string
		input    LegacyPersonne
		expected LegacyPersonne
	}{
		{
			name:     "splits nom when prenom is empty",
			input:    LegacyPersonne{Nom: "Jean Dupont"},
			expected: LegacyPersonne{Prenom: "Jean", Nom: "Dupont"},
		},
		{
			name:     "keeps compound nom after the first space",
			input:    LegacyPersonne{Nom: " Marie de la Tour "},
			expected: LegacyPersonne{Prenom: "Marie", Nom: "de la Tour"},
		},
		{
			name:     "single word nom is kept",
			input:    LegacyPersonne{Nom: "Cher"},
			expected: LegacyPersonne{Nom: "Cher"},
		},
		{
			name:     "mailDirect fills a missing email",
			input:    LegacyPersonne{Prenom: "Ana", Nom: "Lopez", MailDirect: " ana@label.fr "},
			expected: LegacyPersonne{Prenom: "Ana", Nom: "Lopez", Email: "ana@label.fr", MailDirect: "ana@label.fr"},
		},
		{
			name:     "email wins over mailDirect",
			input:    LegacyPersonne{Prenom: "Ana", Nom: "Lopez", Email: "a@b.com", MailDirect: "other@b.com"},
			expected: LegacyPersonne{Prenom: "Ana", Nom: "Lopez", Email: "a@b.com", MailDirect: "other@b.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.Normalized())
		})
	}
}

func TestLegacyProgrammateur_ToBundle(t *testing.T) {
	t.Run("with structure becomes mixed", func(t *testing.T) {
		p := LegacyProgrammateur{
			ID:                     "prog-1",
			Prenom:                 "Lea",
			Nom:                    "Martin",
			Email:                  "lea@festival.fr",
			Fonction:               "Programmatrice",
			StructureRaisonSociale: "Festival Test",
			StructureType:          "festival",
			StructureVille:         "Paris",
			StructureTelephone:     "0102030405",
		}
		bundle := p.ToBundle()
		require.NoError(t, bundle.Validate())
		assert.Equal(t, BundleKindMixed, bundle.EntityType)
		assert.True(t, bundle.HasStructure())
		assert.Equal(t, "Festival Test", bundle.Structure.RaisonSociale)
		assert.Equal(t, "0102030405", bundle.Structure.Telephone1)
		require.Len(t, bundle.Personnes, 1)
		assert.Equal(t, "lea@festival.fr", bundle.Personnes[0].Email)
	})

	t.Run("without structure becomes personne", func(t *testing.T) {
		bundle := LegacyProgrammateur{ID: "prog-2", Nom: "Solo"}.ToBundle()
		require.NoError(t, bundle.Validate())
		assert.Equal(t, BundleKindPersonne, bundle.EntityType)
		assert.False(t, bundle.HasStructure())
	})
}

func TestLegacyBundle_Validate(t *testing.T) {
	structure := &LegacyStructure{RaisonSociale: "Salle"}
	personne := LegacyPersonne{Nom: "X"}

	tests := []struct {
		name   string
		bundle LegacyBundle
		valid  bool
	}{
		{"structure without personnes", LegacyBundle{EntityType: BundleKindStructure, Structure: structure}, true},
		{"structure missing", LegacyBundle{EntityType: BundleKindStructure}, false},
		{"mixed needs personnes", LegacyBundle{EntityType: BundleKindMixed, Structure: structure}, false},
		{"mixed complete", LegacyBundle{EntityType: BundleKindMixed, Structure: structure, Personnes: []LegacyPersonne{personne}}, true},
		{"personne with structure", LegacyBundle{EntityType: BundleKindPersonne, Structure: structure, Personnes: []LegacyPersonne{personne}}, false},
		{"personne alone", LegacyBundle{EntityType: BundleKindPersonne, Personnes: []LegacyPersonne{personne}}, true},
		{"unknown kind", LegacyBundle{EntityType: "contact"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bundle.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCollectReferences(t *testing.T) {
	structures := []*Structure{{ID: "s1", LegacyPersonneIDs: []string{"p1", ""}}}
	personnes := []*Personne{{ID: "p2", LegacyStructureIDs: []string{"s1"}}}
	liaisons := []*Liaison{{ID: "l1", StructureID: "s1", PersonneID: "p1", Actif: true}}

	refs := CollectReferences(structures, personnes, liaisons)
	require.Len(t, refs, 3)

	legacy, ok := refs[0].(LegacyEmbeddedRef)
	require.True(t, ok)
	assert.Equal(t, Pair{StructureID: "s1", PersonneID: "p1"}, legacy.Pair())
	assert.Equal(t, RefSidePersonne, legacy.TargetSide())

	reverse, ok := refs[1].(LegacyEmbeddedRef)
	require.True(t, ok)
	assert.Equal(t, Pair{StructureID: "s1", PersonneID: "p2"}, reverse.Pair())
	assert.Equal(t, RefSideStructure, reverse.TargetSide())

	relational, ok := refs[2].(RelationalLiaison)
	require.True(t, ok)
	assert.Equal(t, "l1", relational.LiaisonID)
	assert.True(t, relational.Actif)
}
