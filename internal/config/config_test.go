package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		env        string
		want       string
		wantErr    bool
	}{
		{name: "configured", configured: "https://photos.example.com/api", want: "https://photos.example.com/api/"},
		{name: "keeps slash", configured: "https://photos.example.com/", want: "https://photos.example.com/"},
		{name: "placeholder falls back to env", configured: BaseURLPlaceholder, env: "http://localhost:5000", want: "http://localhost:5000/"},
		{name: "empty falls back to env", env: "http://localhost:5000/", want: "http://localhost:5000/"},
		{name: "nothing set", configured: BaseURLPlaceholder, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBaseURL(tt.configured, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api:\n  base_url: http://api.local\nserver:\n  port: 9090\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://api.local/", cfg.API.BaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, 30, cfg.Gallery.PageSize)
	assert.Equal(t, 100, cfg.Gallery.AlbumPageSize)
	assert.Equal(t, 72*time.Hour, cfg.Auth.RefreshExpiration)
	assert.Equal(t, 30*time.Second, cfg.Query.StaleTime)
	assert.Equal(t, int64(512<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, int64(2<<30), cfg.Upload.MaxRequestSize)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv(BaseURLEnv, "http://env.local")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://env.local/", cfg.API.BaseURL)
}
