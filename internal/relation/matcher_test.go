package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balbirthomas/operator/internal/ir"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		offered  ir.CapabilitySet
		required ir.CapabilitySet
		want     VerdictKind
	}{
		{"exact match", ir.CapabilitySet{"TestService": "1.0.0"}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictAvailable},
		{"extra offered", ir.CapabilitySet{"TestService": "1.0.0", "Other": "3"}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictAvailable},
		{"empty required", ir.CapabilitySet{"TestService": "1.0.0"}, ir.CapabilitySet{}, VerdictAvailable},
		{"nothing at all", nil, nil, VerdictAvailable},
		{"older version", ir.CapabilitySet{"TestService": "0.9.0"}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictInvalid},
		{"newer version", ir.CapabilitySet{"TestService": "2.0.0"}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictInvalid},
		{"semver-equal but different bytes", ir.CapabilitySet{"TestService": "1.0"}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictInvalid},
		{"name case differs", ir.CapabilitySet{"testservice": "1.0.0"}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictInvalid},
		{"missing", ir.CapabilitySet{}, ir.CapabilitySet{"TestService": "1.0.0"}, VerdictInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.offered, tt.required).Kind)
		})
	}
}

func TestEvaluate_ReportsEveryMismatchSorted(t *testing.T) {
	v := Evaluate(
		ir.CapabilitySet{"b": "2", "c": "9", "d": "1"},
		ir.CapabilitySet{"d": "1", "c": "3", "a": "1", "b": "2"},
	)

	require.Equal(t, VerdictInvalid, v.Kind)
	require.Len(t, v.Mismatches, 2)
	assert.Equal(t, VersionMismatch{Capability: "a", Required: "1", Missing: true}, v.Mismatches[0])
	assert.Equal(t, VersionMismatch{Capability: "c", Required: "3", Offered: "9"}, v.Mismatches[1])
	assert.Contains(t, v.Mismatches[0].Error(), "not offered")
	assert.Contains(t, v.Mismatches[1].Error(), `offered "9"`)
}
