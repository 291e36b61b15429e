package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseConfigPath tests ---

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"gateway.port", []string{"gateway", "port"}, false},
		{"gateway.rateLimit.rps", []string{"gateway", "rateLimit", "rps"}, false},
		{"livekit", []string{"livekit"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{".livekit", nil, true},
		{"__proto__.x", nil, true},
		{"x.constructor", nil, true},
		{"call.prototype", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// --- value path tests ---

func TestGetSetValueAtPath(t *testing.T) {
	root := map[string]any{
		"livekit": map[string]any{
			"apiKey": "abc",
		},
	}

	val, ok := GetValueAtPath(root, []string{"livekit", "apiKey"})
	assert.True(t, ok)
	assert.Equal(t, "abc", val)

	_, ok = GetValueAtPath(root, []string{"livekit", "missing"})
	assert.False(t, ok)

	_, ok = GetValueAtPath(root, []string{"livekit", "apiKey", "deeper"})
	assert.False(t, ok)

	SetValueAtPath(root, []string{"livekit", "apiKey"}, "def")
	val, _ = GetValueAtPath(root, []string{"livekit", "apiKey"})
	assert.Equal(t, "def", val)

	SetValueAtPath(root, []string{"gateway", "rateLimit", "rps"}, 2)
	val, ok = GetValueAtPath(root, []string{"gateway", "rateLimit", "rps"})
	assert.True(t, ok)
	assert.Equal(t, 2, val)
}

func TestSetValueAtPath_OverwritesNonMap(t *testing.T) {
	root := map[string]any{"call": "scalar"}
	SetValueAtPath(root, []string{"call", "mode"}, "support")

	val, ok := GetValueAtPath(root, []string{"call", "mode"})
	assert.True(t, ok)
	assert.Equal(t, "support", val)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"call": map[string]any{
			"mode":    "sales",
			"persona": "Ava",
		},
	}

	assert.True(t, UnsetValueAtPath(root, []string{"call", "mode"}))
	_, exists := GetValueAtPath(root, []string{"call", "mode"})
	assert.False(t, exists)

	val, exists := GetValueAtPath(root, []string{"call", "persona"})
	assert.True(t, exists)
	assert.Equal(t, "Ava", val)

	assert.False(t, UnsetValueAtPath(root, []string{"call", "nonexistent"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
	assert.False(t, UnsetValueAtPath(root, []string{"call", "persona", "x"}))
}

func TestIsSecretPath(t *testing.T) {
	assert.True(t, IsSecretPath("livekit.apiSecret"))
	assert.True(t, IsSecretPath("livekit.apiKey"))
	assert.False(t, IsSecretPath("livekit.url"))
}

// --- ResolvePaths tests ---

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("CONVERGS_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".convergs"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".convergs", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".convergs", "logs"), paths.Logs)
	assert.Equal(t, filepath.Join(home, ".convergs", "data", "calls.db"), paths.Archive)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CONVERGS_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "data"), paths.Data)
}

func TestArchivePath(t *testing.T) {
	paths := Paths{Archive: "/home/u/.convergs/data/calls.db"}
	cfg := Defaults()
	assert.Equal(t, "/home/u/.convergs/data/calls.db", paths.ArchivePath(&cfg))

	cfg.Archive.Path = "/srv/calls.db"
	assert.Equal(t, "/srv/calls.db", paths.ArchivePath(&cfg))
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("CONVERGS_HOME", t.TempDir())

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Logs, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
