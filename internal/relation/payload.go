package relation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
)

// EncodePayload serializes p as canonical JSON for the provider_data field.
func EncodePayload(p ir.ProviderPayload) (string, error) {
	if p.Provides == nil {
		p.Provides = ir.CapabilitySet{}
	}
	data, err := ir.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("encode provider payload: %w", err)
	}
	return string(data), nil
}

// wirePayload distinguishes absent members from zero values.
type wirePayload struct {
	Provides *map[string]string `json:"provides"`
	Ready    *bool              `json:"ready"`
	Config   *string            `json:"config"`
}

// DecodePayload parses a provider_data value. All three members are required;
// unknown members are ignored. Every failure is a *PayloadDecodeError.
func DecodePayload(raw string) (ir.ProviderPayload, error) {
	var w wirePayload
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&w); err != nil {
		return ir.ProviderPayload{}, &PayloadDecodeError{Field: ir.ProviderDataField, Reason: DecodeMalformed, Err: err}
	}
	if dec.More() {
		return ir.ProviderPayload{}, &PayloadDecodeError{
			Field:  ir.ProviderDataField,
			Reason: DecodeMalformed,
			Err:    errors.New("trailing data after payload object"),
		}
	}

	switch {
	case w.Provides == nil:
		return ir.ProviderPayload{}, &PayloadDecodeError{Field: "provides", Reason: DecodeMissingField}
	case w.Ready == nil:
		return ir.ProviderPayload{}, &PayloadDecodeError{Field: "ready", Reason: DecodeMissingField}
	case w.Config == nil:
		return ir.ProviderPayload{}, &PayloadDecodeError{Field: "config", Reason: DecodeMissingField}
	}

	provides := ir.CapabilitySet(*w.Provides)
	if _, ok := provides[""]; ok {
		return ir.ProviderPayload{}, &PayloadDecodeError{
			Field:  "provides",
			Reason: DecodeInvalidField,
			Err:    errors.New("empty capability name"),
		}
	}

	return ir.ProviderPayload{
		Provides: provides.Clone(),
		Ready:    *w.Ready,
		Config:   *w.Config,
	}, nil
}
