// Package builder wraps the external build tool that compiles a revision
// into a deployable artifact.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/internal/domain/service/remediation"
	"genflow-agent/pkg/env"
	"genflow-agent/pkg/log"
)

// Config describes how to invoke the external build tool.
type Config struct {
	// Command is the build tool argv, e.g. ["nix-build", "--no-out-link"].
	Command []string
	// WorkDir is the working directory for the build, empty for inherited.
	WorkDir string
	// EnvFile optionally points at a .env file with extra build environment.
	EnvFile string
	// LogsPath is the directory where raw build logs are kept.
	LogsPath string
}

// Builder implements repository.Builder by running the configured command.
// It performs no retries: retry policy belongs to the remediation loop.
type Builder struct {
	config Config
}

var _ repository.Builder = (*Builder)(nil)

// New creates a Builder for the given tool configuration.
func New(config Config) (*Builder, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("builder command is not configured")
	}
	return &Builder{config: config}, nil
}

// logPath returns the log file path for one build run.
func (b *Builder) logPath(revisionID, runID string) string {
	if err := os.MkdirAll(b.config.LogsPath, 0o755); err != nil {
		log.Warn("failed to create build logs directory", "path", b.config.LogsPath, "error", err)
	}
	timestamp := time.Now().Format("20060102150405")
	return filepath.Join(b.config.LogsPath, fmt.Sprintf("%s_%s_%s.log", timestamp, revisionID, runID))
}

// Build runs the build tool on the revision and returns the artifact
// reference printed on the tool's last output line. Failures come back as a
// *model.BuildError carrying the full log and a classification hint for the
// remediation engine.
func (b *Builder) Build(ctx context.Context, revision model.Revision) (string, error) {
	runID := uuid.NewString()

	args := append([]string(nil), b.config.Command[1:]...)
	args = append(args, revision.PayloadRef)
	for _, patch := range revision.Patches {
		args = append(args, patch)
	}

	cmd := exec.CommandContext(ctx, b.config.Command[0], args...)
	cmd.Dir = b.config.WorkDir
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "GENFLOW_REVISION="+revision.ID)

	if b.config.EnvFile != "" {
		extra, err := env.Read(b.config.EnvFile)
		if err != nil {
			return "", fmt.Errorf("failed to read builder env file: %w", err)
		}
		for k, v := range extra {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	log.Info("starting build", "revision", revision.ID, "run_id", runID, "command", b.config.Command[0])
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	logText := output.String()
	logFile := b.logPath(revision.ID, runID)
	if writeErr := os.WriteFile(logFile, output.Bytes(), 0o644); writeErr != nil {
		log.Warn("failed to persist build log", "path", logFile, "error", writeErr)
	}

	if err != nil {
		// Context cancellation wins over the exit status so the
		// orchestrator sees the timeout, not a bogus build failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		buildErr := &model.BuildError{
			Class:    remediation.ClassifyBuildLog(logText),
			ExitCode: exitCode,
			Log:      logText,
		}
		log.Warn("build failed",
			"revision", revision.ID,
			"run_id", runID,
			"exit_code", exitCode,
			"class", buildErr.Class,
			"duration", elapsed.String(),
			"log_file", logFile)
		return "", buildErr
	}

	artifact := lastLine(logText)
	if artifact == "" {
		return "", &model.BuildError{
			ExitCode: 0,
			Log:      logText,
			Class:    "empty-artifact",
		}
	}

	log.Info("build succeeded", "revision", revision.ID, "run_id", runID, "artifact", artifact, "duration", elapsed.String())
	return artifact, nil
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
