package remediation

import (
	"regexp"

	"genflow-agent/internal/domain/model"
)

// Failure signatures recognized by the default rule set. Builders surface
// these as classification hints; the raw log is matched as a fallback so a
// hint-less builder still gets remediation for well-known breakage.
var (
	missingDependencyRe = regexp.MustCompile(`(?i)(missing dependency|cannot find (package|input)|attribute '([^']+)' (is )?(missing|not found))`)
	staleLockRe         = regexp.MustCompile(`(?i)(stale lock|could not acquire lock|lock file .* is held)`)
	outdatedChannelRe   = regexp.MustCompile(`(?i)(hash mismatch|channel .* (is )?out of date|source archive no longer available)`)
)

func classMatches(failure *model.BuildError, class string, re *regexp.Regexp) bool {
	if failure.Class == class {
		return true
	}
	return failure.Class == "" && re.MatchString(failure.Log)
}

// DefaultRules returns the ordered rule table for the stock failure classes.
// Order matters: the first match wins, so the most specific signatures come
// first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "pin-missing-dependency",
			Match: func(f *model.BuildError) bool {
				return classMatches(f, "missing-dependency", missingDependencyRe)
			},
			Apply: func(r model.Revision) (model.Revision, error) {
				return r.WithPatch("pin-missing-dependency", "--ensure-inputs"), nil
			},
		},
		{
			Name: "clear-stale-lock",
			Match: func(f *model.BuildError) bool {
				return classMatches(f, "stale-lock", staleLockRe)
			},
			Apply: func(r model.Revision) (model.Revision, error) {
				return r.WithPatch("clear-stale-lock", "--break-stale-locks"), nil
			},
		},
		{
			Name: "refresh-channel",
			Match: func(f *model.BuildError) bool {
				return classMatches(f, "outdated-channel", outdatedChannelRe)
			},
			Apply: func(r model.Revision) (model.Revision, error) {
				return r.WithPatch("refresh-channel", "--refetch-sources"), nil
			},
		},
	}
}

// RuleNames lists the names of the given rules, primarily for doctor output.
func RuleNames(rules []Rule) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	return names
}

// ClassifyBuildLog derives a classification hint from a raw build log. The
// builder adapter uses it so remediation can match on class instead of
// re-scanning logs.
func ClassifyBuildLog(logText string) string {
	switch {
	case missingDependencyRe.MatchString(logText):
		return "missing-dependency"
	case staleLockRe.MatchString(logText):
		return "stale-lock"
	case outdatedChannelRe.MatchString(logText):
		return "outdated-channel"
	default:
		return ""
	}
}
