package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitySet_Clone(t *testing.T) {
	orig := CapabilitySet{"TestService": "1.0.0"}
	clone := orig.Clone()
	clone["TestService"] = "2.0.0"

	assert.Equal(t, "1.0.0", orig["TestService"])
	assert.NotNil(t, CapabilitySet(nil).Clone())
}

func TestCapabilitySet_Names(t *testing.T) {
	set := CapabilitySet{"b": "1", "a": "1", "C": "1"}
	assert.Equal(t, []string{"C", "a", "b"}, set.Names())
}

func TestCapabilitySet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		set     CapabilitySet
		wantErr string
	}{
		{"valid", CapabilitySet{"TestService": "1.0.0"}, ""},
		{"empty set", CapabilitySet{}, ""},
		{"empty name", CapabilitySet{"": "1.0.0"}, "name must not be empty"},
		{"empty version", CapabilitySet{"svc": ""}, "version must not be empty"},
		// "e" + combining acute accent is the NFD form of U+00E9
		{"not NFC", CapabilitySet{"cafe\u0301": "1.0.0"}, "not NFC-normalized"},
		{"NFC", CapabilitySet{"caf\u00e9": "1.0.0"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRelationDescriptor_String(t *testing.T) {
	rel := RelationDescriptor{ID: 3, Name: "service", Interface: "svc", RemoteApp: "aservice"}
	assert.Equal(t, "service:3", rel.String())
}

func TestPayloadDigest_Stable(t *testing.T) {
	p := ProviderPayload{Provides: CapabilitySet{"a": "1", "b": "2"}, Ready: true, Config: "c"}
	d1, err := PayloadDigest(p)
	require.NoError(t, err)
	d2, err := PayloadDigest(ProviderPayload{Provides: CapabilitySet{"b": "2", "a": "1"}, Ready: true, Config: "c"})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	p.Ready = false
	d3, err := PayloadDigest(p)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
	assert.Len(t, ShortDigest(d3), 12)
}
