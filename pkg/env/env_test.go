package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	vars := map[string]string{
		"NIX_PATH":     "nixpkgs=/var/channels/nixos",
		"BUILD_CORES":  "4",
		"EXTRA_FLAGS":  "--keep-going --fallback",
		"QUOTED_VALUE": `contains "quotes" and spaces`,
	}

	require.NoError(t, Save(path, vars))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, vars, got)
}

func TestReadSkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# builder environment\n\nA=1\n  # indented comment\nB=two words\nmalformed line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two words"}, got)
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveEmptyMapIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, Save(path, nil))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
