package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_documents.up.sql",
		"000001_create_documents.down.sql",
		"000003_add_index.up.sql",
		"000002_backfill.up.sql",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)
}

func TestGetLatestVersion_Empty(t *testing.T) {
	_, err := getLatestVersion(t.TempDir())
	assert.Error(t, err)
}

func TestJSONB_ScanAndValue(t *testing.T) {
	var doc JSONB[map[string]any]
	require.NoError(t, doc.Scan([]byte(`{"raisonSociale":"Festival Test","isClient":true}`)))
	assert.Equal(t, "Festival Test", doc.GetValue()["raisonSociale"])

	value, err := doc.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"raisonSociale":"Festival Test","isClient":true}`, value.(string))

	assert.Error(t, doc.Scan(42))
}
