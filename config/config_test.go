package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Address:      "http://localhost:9200",
		CollectionA:  "users_v1",
		CollectionB:  "users_v2",
		DocType:      "_doc",
		PageSize:     1000,
		Lease:        "2m",
		OutputFormat: "csv",
		OutputPath:   "out.csv",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsSameCollections(t *testing.T) {
	cfg := validConfig()
	cfg.CollectionB = cfg.CollectionA
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Address = "localhost:9200"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPageSize(t *testing.T) {
	cfg := validConfig()
	cfg.PageSize = 0
	assert.Error(t, cfg.Validate())

	cfg.PageSize = -5
	assert.Error(t, cfg.Validate())
}

func TestValidateLeaseGrammar(t *testing.T) {
	cfg := validConfig()
	for _, lease := range []string{"2m", "30s", "1h", "90m"} {
		cfg.Lease = lease
		assert.NoError(t, cfg.Validate(), lease)
	}
	for _, lease := range []string{"", "2", "m", "2d", "2 m", "0s", "-1m"} {
		cfg.Lease = lease
		assert.Error(t, cfg.Validate(), lease)
	}
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	cfg := validConfig()
	cfg.OutputFormat = "xml"
	assert.Error(t, cfg.Validate())
}

func TestLeaseDuration(t *testing.T) {
	cfg := validConfig()

	cfg.Lease = "30s"
	d, err := cfg.LeaseDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	cfg.Lease = "2m"
	d, err = cfg.LeaseDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	cfg.Lease = "1h"
	d, err = cfg.LeaseDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Address:     "http://localhost:9200",
		CollectionA: "users-v1",
		CollectionB: "users.v2",
	}
	now := time.Date(2025, 8, 26, 13, 45, 0, 0, time.UTC)
	cfg.ApplyDefaults(now)

	assert.Equal(t, "_doc", cfg.DocType)
	assert.Equal(t, 1000, cfg.PageSize)
	assert.Equal(t, "2m", cfg.Lease)
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.Equal(t, "2025-08-26_13-45-00-users_v1-by-users_v2.csv", cfg.OutputPath,
		"default name derives from timestamp and sanitized collection names")
}

func TestApplyDefaultsKeepsExplicitOutput(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults(time.Now())
	assert.Equal(t, "out.csv", cfg.OutputPath)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftscan.yaml")
	content := `
address: http://store:9200
collection_a: left
collection_b: right
page_size: 500
lease: 5m
exclude_paths:
  - metadata.updated_at
output_format: csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://store:9200", cfg.Address)
	assert.Equal(t, "left", cfg.CollectionA)
	assert.Equal(t, "right", cfg.CollectionB)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, "5m", cfg.Lease)
	assert.Equal(t, []string{"metadata.updated_at"}, cfg.ExcludePaths)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
