package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadscope/pkg/engine"
)

// isolate points HOME at a temp dir and clears vendor key variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "SERPAPI_API_KEY", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.SelectedProvider)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, 5*time.Second, cfg.Scan.ProbeTimeout)
	assert.Equal(t, time.Second, cfg.Scan.PortTimeout)
	assert.Equal(t, 4, cfg.Search.CompetitorCap)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, engine.DefaultPolicy(), cfg.Scoring)
	assert.Equal(t, filepath.Join(home, ".leadscope", "config.yaml"), cfg.Path())
	assert.Empty(t, cfg.ConfiguredProviders())
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("SERPAPI_API_KEY", "s-key")
	t.Setenv("LEADSCOPE_SCAN_WORKERS", "8")
	t.Setenv("LEADSCOPE_SCORING_PORT_PENALTY_MODE", "per_port")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.GetAPIKey("gemini"))
	assert.Equal(t, "s-key", cfg.Search.APIKey)
	assert.Equal(t, 8, cfg.Scan.Workers)
	assert.Equal(t, engine.PortPenaltyPerPort, cfg.Scoring.PortMode)
	assert.Equal(t, []string{"gemini"}, cfg.ConfiguredProviders())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.SelectedProvider = "openai"
	cfg.SelectedModel = "gpt-4o"
	cfg.SetAPIKey("openai", "sk-test")
	cfg.Scan.ProbeTimeout = 7 * time.Second
	cfg.Scoring.TLSInvalid = 20
	require.NoError(t, SaveConfig(cfg))

	info, err := os.Stat(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "probe_timeout: 7s")

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.SelectedProvider)
	assert.Equal(t, "gpt-4o", loaded.SelectedModel)
	assert.Equal(t, "sk-test", loaded.GetAPIKey("openai"))
	assert.Equal(t, 7*time.Second, loaded.Scan.ProbeTimeout)
	assert.Equal(t, 20, loaded.Scoring.TLSInvalid)
}

func TestSaveSkipsEnvironmentSecrets(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  openai:\n    api_key: file-key\n"), 0600))
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("SERPAPI_API_KEY", "env-serp")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("MINIO_SECRET_KEY", "env-minio")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-openai", cfg.GetAPIKey("openai"))

	cfg.SelectedModel = "gemini-1.5-pro"
	cfg.SetAPIKey("anthropic", "typed-key")
	require.NoError(t, SaveConfig(cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.NotContains(t, text, "env-gemini")
	assert.NotContains(t, text, "env-serp")
	assert.NotContains(t, text, "env-openai")
	assert.NotContains(t, text, "env-minio")
	assert.Contains(t, text, "file-key")
	assert.Contains(t, text, "typed-key")
	assert.Contains(t, text, "selected_model: gemini-1.5-pro")

	// a key set explicitly is saved even when the environment also supplies one
	cfg.Search.APIKey = "typed-serp"
	require.NoError(t, SaveConfig(cfg))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "typed-serp")
}

func TestLoadExplicitPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  workers: 2\nsearch:\n  competitor_cap: 3\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Scan.Workers)
	assert.Equal(t, 3, cfg.Search.CompetitorCap)
	assert.Equal(t, 3*time.Second, cfg.Scan.TLSTimeout, "unset keys keep defaults")
}

func TestValidateRejectsBadValues(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  workers: 0\nscoring:\n  port_penalty_mode: sometimes\nselected_provider: mystery\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.workers")
	assert.Contains(t, err.Error(), "port_penalty_mode")
	assert.Contains(t, err.Error(), "mystery")
}
