// Package doctor runs preflight probes over the agent's environment: the
// build toolchain, state directories and remote APIs a session depends on.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"genflow-agent/internal/config"
	"genflow-agent/internal/domain/service/remediation"
	"genflow-agent/internal/version"
)

// Probe is one environment check.
type Probe interface {
	// Name identifies the probe in doctor output.
	Name() string
	// Check runs the probe and returns a human-readable detail line, or an
	// error describing what is broken.
	Check(ctx context.Context) (string, error)
}

// Result is the outcome of one probe.
type Result struct {
	Name   string
	Detail string
	Err    error
}

// Ok reports whether the probe passed.
func (r Result) Ok() bool {
	return r.Err == nil
}

// Probes builds the full probe list for the given configuration.
func Probes(cfg *config.Config) []Probe {
	probes := []Probe{
		agentVersionProbe{},
		systemOSProbe{},
		builderProbe{command: cfg.Builder.Command},
		statePathProbe{path: cfg.BasePath},
		ruleTableProbe{},
		endpointProbe{name: "configuration source", url: cfg.SourceURL},
	}
	if cfg.RegistryURL != "" {
		probes = append(probes, endpointProbe{name: "issue registry", url: cfg.RegistryURL})
	}
	return probes
}

// Run executes all probes and collects their results.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		detail, err := p.Check(ctx)
		results = append(results, Result{Name: p.Name(), Detail: detail, Err: err})
	}
	return results
}

// Healthy reports whether every probe passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.Ok() {
			return false
		}
	}
	return true
}

type agentVersionProbe struct{}

func (agentVersionProbe) Name() string { return "agent version" }

func (agentVersionProbe) Check(ctx context.Context) (string, error) {
	return version.GetVersion(), nil
}

type systemOSProbe struct{}

func (systemOSProbe) Name() string { return "system" }

func (systemOSProbe) Check(ctx context.Context) (string, error) {
	return runtime.GOOS + "/" + runtime.GOARCH, nil
}

// builderProbe checks the build command resolves and answers --version.
type builderProbe struct {
	command []string
}

func (builderProbe) Name() string { return "builder" }

func (p builderProbe) Check(ctx context.Context) (string, error) {
	if len(p.command) == 0 {
		return "", fmt.Errorf("no build command configured")
	}
	path, err := exec.LookPath(p.command[0])
	if err != nil {
		return "", fmt.Errorf("build command %q not found in PATH", p.command[0])
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		// Resolvable but version-less builders still count as present.
		return path, nil
	}
	return fmt.Sprintf("%s (%s)", path, firstLine(string(out))), nil
}

// statePathProbe checks the agent state directory exists and is writable.
type statePathProbe struct {
	path string
}

func (statePathProbe) Name() string { return "state directory" }

func (p statePathProbe) Check(ctx context.Context) (string, error) {
	if err := os.MkdirAll(p.path, 0755); err != nil {
		return "", fmt.Errorf("cannot create state directory %s: %w", p.path, err)
	}
	marker := filepath.Join(p.path, ".doctor")
	if err := os.WriteFile(marker, []byte("ok"), 0644); err != nil {
		return "", fmt.Errorf("state directory %s is not writable: %w", p.path, err)
	}
	os.Remove(marker)
	return p.path, nil
}

type ruleTableProbe struct{}

func (ruleTableProbe) Name() string { return "remediation rules" }

func (ruleTableProbe) Check(ctx context.Context) (string, error) {
	names := remediation.RuleNames(remediation.DefaultRules())
	return strings.Join(names, ", "), nil
}

// endpointProbe checks an HTTP API answers at all. Any status code counts:
// the probe verifies reachability, not authentication.
type endpointProbe struct {
	name string
	url  string
}

func (p endpointProbe) Name() string { return p.name }

func (p endpointProbe) Check(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", p.url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s unreachable at %s: %w", p.name, p.url, err)
	}
	resp.Body.Close()
	return fmt.Sprintf("%s (HTTP %d)", p.url, resp.StatusCode), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
