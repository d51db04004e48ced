package update

import (
	"fmt"
	"strings"
)

type Decision string

const (
	DecisionForced          Decision = "forced"            // Skip version comparison, loose asset match
	DecisionAlreadyUpToDate Decision = "already-up-to-date" // Remote equals local, nothing to do
	DecisionUpdateAvailable Decision = "update-available"   // Remote differs, update not requested
	DecisionVersionUnknown  Decision = "version-unknown"    // Remote has no usable tag
	DecisionProceed         Decision = "proceed"            // Remote differs and update requested
)

// Resolve decides how the pipeline continues.
//
// remoteTag:       tag of the latest release ("" when the remote published none)
// localVersion:    version of the running program
// updateRequested: normal, version-gated update was asked for
// forceRequested:  forced update was asked for
//
// The two flags are mutually exclusive; callers reject the combination before
// calling Resolve. Resolve is pure: the result depends on its arguments only.
func Resolve(remoteTag, localVersion string, updateRequested, forceRequested bool) Decision {
	if forceRequested {
		return DecisionForced
	}

	remote := strings.TrimSpace(remoteTag)
	if remote == "" {
		return DecisionVersionUnknown
	}

	if remote == strings.TrimSpace(localVersion) {
		return DecisionAlreadyUpToDate
	}

	if !updateRequested {
		return DecisionUpdateAvailable
	}
	return DecisionProceed
}

// Continues reports whether the pipeline goes on to fetch and install a package.
func (d Decision) Continues() bool {
	return d == DecisionProceed || d == DecisionForced
}

// Forced reports whether asset selection should use the loose naming rule.
func (d Decision) Forced() bool {
	return d == DecisionForced
}

// Describe returns a short human-readable status for the decision.
func (d Decision) Describe() string {
	switch d {
	case DecisionForced:
		return "Forced update requested"
	case DecisionAlreadyUpToDate:
		return "Already at latest version (no update needed)"
	case DecisionUpdateAvailable:
		return "Update available"
	case DecisionVersionUnknown:
		return "Remote version unknown"
	case DecisionProceed:
		return "Updating"
	default:
		return string(d)
	}
}

// Message builds the user-facing line printed for a decision.
func Message(d Decision, remoteTag, localVersion string) string {
	switch d {
	case DecisionForced:
		if strings.TrimSpace(remoteTag) == "" {
			return fmt.Sprintf("Forcing update from %s (remote version unknown).", localVersion)
		}
		return fmt.Sprintf("Forcing update: %s → %s", localVersion, remoteTag)
	case DecisionAlreadyUpToDate:
		return fmt.Sprintf("Already at latest version (%s).", localVersion)
	case DecisionUpdateAvailable:
		return fmt.Sprintf("Update available: %s → %s. Rerun with --update to install.", localVersion, remoteTag)
	case DecisionVersionUnknown:
		return "Warning: latest release has no usable version tag; rerun with --force-update to install it anyway."
	case DecisionProceed:
		return fmt.Sprintf("Updating: %s → %s", localVersion, remoteTag)
	default:
		return d.Describe()
	}
}
