package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfig_ActiveProfile(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Host: "http://localhost:8000", Username: "admin", Output: "table"},
			"staging": {Host: "https://staging.example.com", Token: "tok", Output: "json", Database: 3},
		},
	}

	tests := []struct {
		name     string
		override string
		wantHost string
	}{
		{"current profile", "", "http://localhost:8000"},
		{"override", "staging", "https://staging.example.com"},
		{"unknown override", "missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantHost, cfg.ActiveProfile(tt.override).Host)
		})
	}
}

func TestUserConfig_ProfileNameDefaults(t *testing.T) {
	cfg := &UserConfig{}
	assert.Equal(t, DefaultProfile, cfg.ProfileName(""))
	assert.Equal(t, "x", cfg.ProfileName("x"))
}

func TestUserConfig_UpdateProfile(t *testing.T) {
	cfg := &UserConfig{}
	cfg.UpdateProfile("dev", func(p *Profile) { p.Token = "abc" })
	cfg.UpdateProfile("dev", func(p *Profile) { p.Host = "http://dev:8000" })

	assert.Equal(t, Profile{Host: "http://dev:8000", Token: "abc"}, cfg.Profiles["dev"])
}

func TestSaveAndLoadUserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cfg := &UserConfig{
		CurrentProfile: "test",
		Profiles: map[string]Profile{
			"test": {Host: "http://test:8000", Token: "tok_test", Database: 2},
		},
	}
	require.NoError(t, SaveUserConfig(cfg))

	info, err := os.Stat(filepath.Join(dir, ".dba", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", loaded.CurrentProfile)
	require.Contains(t, loaded.Profiles, "test")
	assert.Equal(t, "tok_test", loaded.Profiles["test"].Token)
	assert.Equal(t, int64(2), loaded.Profiles["test"].Database)
}

func TestLoadUserConfig_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadUserConfig()
	require.Error(t, err)

	cfg := loadOrEmptyUserConfig()
	assert.Equal(t, DefaultProfile, cfg.CurrentProfile)
	assert.NotNil(t, cfg.Profiles)
}
