package relation

import "github.com/balbirthomas/operator/internal/ir"

// VerdictKind is the outcome of matching offered against required capabilities.
type VerdictKind string

const (
	VerdictAvailable VerdictKind = "available"
	VerdictInvalid   VerdictKind = "invalid"
)

// Verdict is computed fresh on every evaluation.
type Verdict struct {
	Kind VerdictKind
	// Mismatches lists every unsatisfied requirement, sorted by capability name.
	Mismatches []VersionMismatch
}

// Evaluate checks that every required capability is offered at exactly the
// required version. Versions are opaque strings compared byte for byte; names
// are never normalized or case-folded. An empty required set is always
// Available.
func Evaluate(offered, required ir.CapabilitySet) Verdict {
	var mismatches []VersionMismatch
	for _, name := range required.Names() {
		want := required[name]
		got, ok := offered[name]
		switch {
		case !ok:
			mismatches = append(mismatches, VersionMismatch{Capability: name, Required: want, Missing: true})
		case got != want:
			mismatches = append(mismatches, VersionMismatch{Capability: name, Required: want, Offered: got})
		}
	}
	if len(mismatches) > 0 {
		return Verdict{Kind: VerdictInvalid, Mismatches: mismatches}
	}
	return Verdict{Kind: VerdictAvailable}
}
