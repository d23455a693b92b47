package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/shared"
)

func validConfig() *Config {
	return &Config{
		AuthMode:      AuthModeLocal,
		PrincipalMode: PrincipalModeLocal,
		StoreBackend:  StoreBackendMemory,
		CacheBackend:  CacheBackendMemory,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, AuthModeLocal, cfg.AuthMode)
	require.Equal(t, PrincipalModeLocal, cfg.PrincipalMode)
	require.Equal(t, "license", cfg.PrimaryIdentifier)
	require.Equal(t, "user", cfg.DefaultRole)
	require.True(t, cfg.AutoCreate)
	require.Equal(t, 10, cfg.BcryptCost)
}

func TestValidateRejectsUnknownModes(t *testing.T) {
	cases := map[string]func(*Config){
		"auth mode":      func(c *Config) { c.AuthMode = "oauth" },
		"principal mode": func(c *Config) { c.PrincipalMode = "remote" },
		"store backend":  func(c *Config) { c.StoreBackend = "sqlite" },
		"cache backend":  func(c *Config) { c.CacheBackend = "memcached" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), shared.ErrConfiguration)
		})
	}
}

func TestValidateAPIModesRequireBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.AuthMode = AuthModeAPI
	require.ErrorIs(t, cfg.Validate(), shared.ErrConfiguration)

	cfg.APIBaseURL = "https://accounts.example.com"
	require.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.PrincipalMode = PrincipalModeAPI
	require.ErrorIs(t, cfg.Validate(), shared.ErrConfiguration)
}

func TestNeedsStore(t *testing.T) {
	cfg := validConfig()
	require.True(t, cfg.NeedsStore())

	cfg.AuthMode = AuthModeAPI
	cfg.APIBaseURL = "https://accounts.example.com"
	require.True(t, cfg.NeedsStore())

	cfg.PrincipalMode = PrincipalModeAPI
	require.False(t, cfg.NeedsStore())
}
