package ir

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// ProviderDataField is the application-scope field holding the encoded
// provider payload. It is the only field either role reads or writes.
const ProviderDataField = "provider_data"

// RelationDescriptor identifies one relation instance.
type RelationDescriptor struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`       // Declared relation name (e.g. "service")
	Interface string `json:"interface"`  // Interface identifier (e.g. "svc")
	RemoteApp string `json:"remote_app"` // Application on the other side
}

// String renders the descriptor as name:id for log attributes.
func (r RelationDescriptor) String() string {
	return fmt.Sprintf("%s:%d", r.Name, r.ID)
}

// CapabilitySet maps capability names to version strings.
type CapabilitySet map[string]string

// Clone returns an independent copy. A nil set clones to an empty set.
func (c CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(c))
	for name, version := range c {
		out[name] = version
	}
	return out
}

// Names returns capability names in byte order.
func (c CapabilitySet) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks that every name and version is non-empty and that names
// are already in Unicode NFC form. Names are never rewritten: two peers only
// agree on a capability when they publish the same bytes, so a
// non-normalized name is rejected at configuration time instead.
func (c CapabilitySet) Validate() error {
	for _, name := range c.Names() {
		if name == "" {
			return fmt.Errorf("capability name must not be empty")
		}
		if !norm.NFC.IsNormalString(name) {
			return fmt.Errorf("capability %q is not NFC-normalized", name)
		}
		if c[name] == "" {
			return fmt.Errorf("capability %q: version must not be empty", name)
		}
	}
	return nil
}

// ProviderPayload is the unit a Provider publishes under ProviderDataField.
type ProviderPayload struct {
	Provides CapabilitySet `json:"provides"`
	Ready    bool          `json:"ready"`
	Config   string        `json:"config"` // Opaque token surfaced verbatim to the consumer
}

// canonicalMap converts the payload to the generic form MarshalCanonical
// understands.
func (p ProviderPayload) canonicalMap() map[string]any {
	provides := make(map[string]any, len(p.Provides))
	for name, version := range p.Provides {
		provides[name] = version
	}
	return map[string]any{
		"provides": provides,
		"ready":    p.Ready,
		"config":   p.Config,
	}
}
