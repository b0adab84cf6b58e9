package relate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.InputPath = "in.osm.pbf"
	cfg.OutputPath = "out.ttl"
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsMissingInputPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.OutputPath = "out.ttl"
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsBadBoxGridZoom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.InputPath = "in.osm.pbf"
	cfg.OutputPath = "out.ttl"
	cfg.BoxGridZoom = 0
	assert.Error(t, cfg.Validate())

	cfg.BoxGridZoom = 25
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsOutOfRangeRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.InputPath = "in.osm.pbf"
	cfg.OutputPath = "out.ttl"
	cfg.MinAreaEnvelopeRatio = 1.5
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsUnwritableTempDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputPath = "in.osm.pbf"
	cfg.OutputPath = "out.ttl"
	cfg.TempDir = "/nonexistent/path/for/relate/tests"
	assert.Error(t, cfg.Validate())
}
