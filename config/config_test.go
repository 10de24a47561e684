package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "contacts-engine", cfg.AppName)
	assert.Equal(t, 400, cfg.StoreMaxOpsPerBatch)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.RunLockTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoad_EnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("STORE_MAX_OPS_PER_BATCH=50\nSTORE_DRIVER=memory\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STORE_MAX_OPS_PER_BATCH")
		os.Unsetenv("STORE_DRIVER")
	})

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.StoreMaxOpsPerBatch)
	assert.Equal(t, "memory", cfg.StoreDriver)
}

func TestLoad_RejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("STORE_MAX_OPS_PER_BATCH", "0")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_MAX_OPS_PER_BATCH")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DatabaseHost:     "db",
		DatabasePort:     "5433",
		DatabaseUserName: "booking",
		DatabasePassword: "secret",
		DatabaseName:     "contacts",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5433 user=booking password=secret dbname=contacts sslmode=disable", cfg.DatabaseDSN())
}
