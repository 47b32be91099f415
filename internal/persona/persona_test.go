package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
	assert.NotEmpty(t, p.BaseSystem)
}

func TestLoadSparseFileOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Yuki\npersonality: reserved and dry\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Yuki", p.Name)
	assert.Equal(t, "reserved and dry", p.Personality)
	// Unnamed fields keep their defaults.
	assert.Equal(t, Default().BaseSystem, p.BaseSystem)
	assert.Equal(t, Default().Instructions, p.Instructions)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
