package update

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		local   string
		update  bool
		force   bool
		wantDec Decision
	}{
		{"force wins over equal versions", "v.0.1.0", "v.0.1.0", false, true, DecisionForced},
		{"force wins over missing tag", "", "v.0.1.0", false, true, DecisionForced},
		{"missing tag", "", "v.0.1.0", true, false, DecisionVersionUnknown},
		{"blank tag", "   ", "v.0.1.0", false, false, DecisionVersionUnknown},
		{"equal with update requested", "v.0.1.0", "v.0.1.0", true, false, DecisionAlreadyUpToDate},
		{"equal without update requested", "v.0.1.0", "v.0.1.0", false, false, DecisionAlreadyUpToDate},
		{"differs without update requested", "v.0.2.0", "v.0.1.0", false, false, DecisionUpdateAvailable},
		{"differs with update requested", "v.0.2.0", "v.0.1.0", true, false, DecisionProceed},
		{"older remote still differs", "v.0.0.9", "v.0.1.0", true, false, DecisionProceed},
		{"comparison is case sensitive", "V.0.1.0", "v.0.1.0", true, false, DecisionProceed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.remote, tt.local, tt.update, tt.force)
			if got != tt.wantDec {
				t.Fatalf("Resolve(%q, %q, %v, %v) = %v, want %v", tt.remote, tt.local, tt.update, tt.force, got, tt.wantDec)
			}
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	remotes := []string{"", "v.0.1.0", "v.0.2.0"}
	flags := []struct{ update, force bool }{{false, false}, {true, false}, {false, true}}

	for _, remote := range remotes {
		for _, f := range flags {
			first := Resolve(remote, "v.0.1.0", f.update, f.force)
			for i := 0; i < 3; i++ {
				if got := Resolve(remote, "v.0.1.0", f.update, f.force); got != first {
					t.Fatalf("Resolve(%q, update=%v, force=%v) changed between calls: %v then %v", remote, f.update, f.force, first, got)
				}
			}
		}
	}
}

func TestDecisionContinues(t *testing.T) {
	tests := []struct {
		decision Decision
		want     bool
	}{
		{DecisionForced, true},
		{DecisionProceed, true},
		{DecisionAlreadyUpToDate, false},
		{DecisionUpdateAvailable, false},
		{DecisionVersionUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			if got := tt.decision.Continues(); got != tt.want {
				t.Fatalf("Continues() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		decision     Decision
		wantContains string
	}{
		{DecisionForced, "Forcing"},
		{DecisionAlreadyUpToDate, "Already"},
		{DecisionUpdateAvailable, "--update"},
		{DecisionVersionUnknown, "--force-update"},
		{DecisionProceed, "v.0.2.0"},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			got := Message(tt.decision, "v.0.2.0", "v.0.1.0")
			if !strings.Contains(got, tt.wantContains) {
				t.Fatalf("Message(%v) = %q, want to contain %q", tt.decision, got, tt.wantContains)
			}
		})
	}
}

func TestDescribeDecision(t *testing.T) {
	tests := []struct {
		decision     Decision
		wantContains string
	}{
		{DecisionAlreadyUpToDate, "latest"},
		{DecisionUpdateAvailable, "available"},
		{DecisionForced, "forced"},
		{DecisionVersionUnknown, "unknown"},
		{DecisionProceed, "updating"},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			got := tt.decision.Describe()
			if !strings.Contains(strings.ToLower(got), strings.ToLower(tt.wantContains)) {
				t.Fatalf("Describe(%v) = %q, want to contain %q", tt.decision, got, tt.wantContains)
			}
		})
	}
}
