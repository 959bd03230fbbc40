package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"chi_sim", "eng"}, cfg.OCR.Languages)
	assert.True(t, cfg.OCR.UseAccelerator)
	assert.Equal(t, 4, cfg.OCR.BatchSize)

	assert.Equal(t, 2.0, cfg.Raster.Scale)
	assert.False(t, cfg.Raster.Alpha)

	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 300*time.Second, cfg.Pipeline.DocTimeout())

	assert.Equal(t, "./out", cfg.Output.Dir)
	assert.Equal(t, []string{"xlsx", "csv"}, cfg.Output.Formats)

	assert.Nil(t, cfg.Normalize.Confusions)
	assert.False(t, cfg.DB.Enabled())

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, int64(50), cfg.Server.MaxUploadMB)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FAPIAO_OCR_LANGUAGES", "eng")
	t.Setenv("FAPIAO_OCR_USE_ACCELERATOR", "false")
	t.Setenv("FAPIAO_PIPELINE_CONCURRENCY", "8")
	t.Setenv("FAPIAO_RASTER_SCALE", "3.5")
	t.Setenv("FAPIAO_OUTPUT_FORMATS", "csv")
	t.Setenv("FAPIAO_DB_DSN", "postgres://localhost/fapiao")
	t.Setenv("FAPIAO_SERVER_PORT", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.False(t, cfg.OCR.UseAccelerator)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, 3.5, cfg.Raster.Scale)
	assert.Equal(t, []string{"csv"}, cfg.Output.Formats)
	assert.True(t, cfg.DB.Enabled())
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestLoad_ConfusionPairs(t *testing.T) {
	t.Setenv("FAPIAO_NORMALIZE_CONFUSIONS", "芈=¥,O=0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"芈": "¥", "O": "0"}, cfg.Normalize.Confusions)
}

func TestLoad_InvalidConfusionPairs(t *testing.T) {
	t.Setenv("FAPIAO_NORMALIZE_CONFUSIONS", "not-a-pair")

	_, err := Load()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
}
