package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genflow-agent/internal/domain/model"
)

func newTestBuilder(t *testing.T, command ...string) *Builder {
	t.Helper()
	b, err := New(Config{
		Command:  command,
		LogsPath: t.TempDir(),
	})
	require.NoError(t, err)
	return b
}

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestBuildSuccessReturnsLastOutputLine(t *testing.T) {
	b := newTestBuilder(t, "sh", "-c", `echo "building..."; echo "/store/artifact-r1"; true #`)

	artifact, err := b.Build(context.Background(), model.Revision{ID: "r1", PayloadRef: "cfg/r1"})
	require.NoError(t, err)
	assert.Equal(t, "/store/artifact-r1", artifact)
}

func TestBuildFailureReturnsClassifiedBuildError(t *testing.T) {
	b := newTestBuilder(t, "sh", "-c", `echo "error: attribute 'openssl' not found"; exit 1 #`)

	_, err := b.Build(context.Background(), model.Revision{ID: "r1", PayloadRef: "cfg/r1"})

	var buildErr *model.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 1, buildErr.ExitCode)
	assert.Equal(t, "missing-dependency", buildErr.Class)
	assert.Contains(t, buildErr.Log, "attribute 'openssl' not found")
}

func TestBuildPersistsLog(t *testing.T) {
	logsDir := t.TempDir()
	b, err := New(Config{
		Command:  []string{"sh", "-c", `echo "hello from build"; echo artifact #`},
		LogsPath: logsDir,
	})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), model.Revision{ID: "r1"})
	require.NoError(t, err)

	entries, err := os.ReadDir(logsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(logsDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from build")
}

func TestBuildHonorsCancellation(t *testing.T) {
	b := newTestBuilder(t, "sleep", "10")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Build(ctx, model.Revision{ID: "r1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildPassesPatchesAsArguments(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "args.txt")
	b := newTestBuilder(t, "sh", "-c", `echo "$@" > `+outFile+`; echo artifact`, "argv0")

	rev := model.Revision{ID: "r1+fix", PayloadRef: "cfg/r1", Patches: []string{"--ensure-inputs"}}
	_, err := b.Build(context.Background(), rev)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cfg/r1")
	assert.Contains(t, string(data), "--ensure-inputs")
}

func TestBuildInjectsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BUILD_FLAG=keep-going\n"), 0o644))

	b, err := New(Config{
		Command:  []string{"sh", "-c", `echo "$BUILD_FLAG"; #`},
		EnvFile:  envFile,
		LogsPath: t.TempDir(),
	})
	require.NoError(t, err)

	artifact, err := b.Build(context.Background(), model.Revision{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "keep-going", artifact)
}
