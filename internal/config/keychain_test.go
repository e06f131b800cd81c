package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func TestKeychain_RoundTrip(t *testing.T) {
	t.Cleanup(func() { _ = DeleteAPIKey() })

	assert.Empty(t, KeychainAPIKey())
	assert.Error(t, StoreAPIKey(""))

	require.NoError(t, StoreAPIKey("kc-key"))
	assert.Equal(t, "kc-key", KeychainAPIKey())

	require.NoError(t, DeleteAPIKey())
	assert.Empty(t, KeychainAPIKey())
	assert.NoError(t, DeleteAPIKey())
}

func TestLoader_FallsBackToKeychain(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	require.NoError(t, StoreAPIKey("kc-key"))
	t.Cleanup(func() { _ = DeleteAPIKey() })

	l, err := NewLoader(t.TempDir())
	require.NoError(t, err)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "kc-key", cfg.AI.APIKey)

	t.Setenv("GEMINI_API_KEY", "env-wins")
	cfg, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, "env-wins", cfg.AI.APIKey)
}

func TestLoader_SaveKeepsExternalKeyOutOfFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	dir := t.TempDir()
	l, err := NewLoader(dir)
	require.NoError(t, err)
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.AI.APIKey)

	cfg.UI.SFXEnabled = false
	require.NoError(t, l.Save(cfg))

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "env-key")
}
