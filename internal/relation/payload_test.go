package relation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balbirthomas/operator/internal/ir"
)

func TestEncodePayload_Canonical(t *testing.T) {
	got, err := EncodePayload(ir.ProviderPayload{
		Provides: ir.CapabilitySet{"TestService": "1.0.0", "Alpha": "2"},
		Ready:    true,
		Config:   "<provider&config>",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"config":"<provider&config>","provides":{"Alpha":"2","TestService":"1.0.0"},"ready":true}`, got)
}

func TestEncodePayload_NilCapabilities(t *testing.T) {
	got, err := EncodePayload(ir.ProviderPayload{})
	require.NoError(t, err)
	assert.Equal(t, `{"config":"","provides":{},"ready":false}`, got)
}

func TestDecodePayload_RoundTrip(t *testing.T) {
	in := ir.ProviderPayload{
		Provides: ir.CapabilitySet{"TestService": "1.0.0"},
		Ready:    true,
		Config:   "provider_config",
	}
	raw, err := EncodePayload(in)
	require.NoError(t, err)

	out, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodePayload_IgnoresUnknownMembers(t *testing.T) {
	out, err := DecodePayload(`{"provides":{},"ready":false,"config":"","extra":[1,2]}`)
	require.NoError(t, err)
	assert.Empty(t, out.Provides)
	assert.NotNil(t, out.Provides)
}

func TestDecodePayload_Failures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason DecodeReason
		field  string
	}{
		{"empty string", ``, DecodeMalformed, "provider_data"},
		{"not json", `provider_config`, DecodeMalformed, "provider_data"},
		{"array", `[]`, DecodeMalformed, "provider_data"},
		{"trailing data", `{"provides":{},"ready":true,"config":""} {}`, DecodeMalformed, "provider_data"},
		{"numeric version", `{"provides":{"a":1},"ready":true,"config":""}`, DecodeMalformed, "provider_data"},
		{"missing provides", `{"ready":true,"config":""}`, DecodeMissingField, "provides"},
		{"null provides", `{"provides":null,"ready":true,"config":""}`, DecodeMissingField, "provides"},
		{"missing ready", `{"provides":{},"config":""}`, DecodeMissingField, "ready"},
		{"missing config", `{"provides":{},"ready":true}`, DecodeMissingField, "config"},
		{"empty name", `{"provides":{"":"1"},"ready":true,"config":""}`, DecodeInvalidField, "provides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.raw)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err))

			var de *PayloadDecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.reason, de.Reason)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}
