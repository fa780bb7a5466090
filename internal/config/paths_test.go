package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"agent", []string{"agent"}, false},
		{"model.endpoints.gemini", []string{"model", "endpoints", "gemini"}, false},
		{"", nil, true},
		{"agent..maxTurns", nil, true},
		{"tail.", nil, true},
		{"__proto__.polluted", nil, true},
		{"model.constructor", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"model": map[string]any{"provider": "gemini"},
		"owner": "42",
	}

	v, ok := GetValueAtPath(root, []string{"model", "provider"})
	assert.True(t, ok)
	assert.Equal(t, "gemini", v)

	_, ok = GetValueAtPath(root, []string{"owner", "nested"})
	assert.False(t, ok)

	_, ok = GetValueAtPath(root, []string{"tail"})
	assert.False(t, ok)
}

func TestSetValueAtPath(t *testing.T) {
	root := map[string]any{"owner": "scalar"}

	SetValueAtPath(root, []string{"tail", "activeHours", "start"}, 9)
	v, ok := GetValueAtPath(root, []string{"tail", "activeHours", "start"})
	require.True(t, ok)
	assert.Equal(t, 9, v)

	// a scalar in the way is replaced by a map
	SetValueAtPath(root, []string{"owner", "id"}, "7")
	v, ok = GetValueAtPath(root, []string{"owner", "id"})
	require.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"agent": map[string]any{"maxTurns": 3, "maxRetries": 2},
	}

	assert.True(t, UnsetValueAtPath(root, []string{"agent", "maxTurns"}))
	_, ok := GetValueAtPath(root, []string{"agent", "maxRetries"})
	assert.True(t, ok, "sibling must survive")

	assert.False(t, UnsetValueAtPath(root, []string{"agent", "maxTurns"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
	assert.False(t, UnsetValueAtPath(root, []string{"agent", "maxRetries", "deeper"}))
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("VYRTUOUS_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".vyrtuous")
	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(base, ".env"), paths.Env)
	assert.Equal(t, filepath.Join(base, "data", "corrections.jsonl"), paths.Corrections)
	assert.Equal(t, filepath.Join(base, "data", "vyrtuous.db"), paths.Database)
}

func TestResolvePathsCustomHome(t *testing.T) {
	t.Setenv("VYRTUOUS_HOME", "/tmp/vy")

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vy", paths.Base)
	assert.Equal(t, "/tmp/vy/logs", paths.Logs)
	assert.Equal(t, "/tmp/vy/data", paths.Data)
}

func TestPathOverrides(t *testing.T) {
	paths := Paths{Corrections: "/d/c.jsonl", Database: "/d/v.db"}
	cfg := Defaults()
	assert.Equal(t, "/d/c.jsonl", paths.FeedbackPath(cfg))
	assert.Equal(t, "/d/v.db", paths.DatabasePath(cfg))

	cfg.Feedback.Path = "/elsewhere/pairs.jsonl"
	cfg.Store.Path = "/elsewhere/db"
	assert.Equal(t, "/elsewhere/pairs.jsonl", paths.FeedbackPath(cfg))
	assert.Equal(t, "/elsewhere/db", paths.DatabasePath(cfg))
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	paths := Paths{
		Base: filepath.Join(tmp, "home"),
		Logs: filepath.Join(tmp, "home", "logs"),
		Data: filepath.Join(tmp, "home", "data"),
	}

	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())
	for _, dir := range []string{paths.Base, paths.Logs, paths.Data} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
