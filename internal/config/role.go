package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/balbirthomas/operator/internal/ir"
)

// Role is the local application's side of a relation.
type Role string

const (
	RoleProvider Role = "provider"
	RoleConsumer Role = "consumer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleProvider || r == RoleConsumer
}

// RelationConfig names the relation endpoint. Name/interface pairs are
// assumed to be pre-validated by whatever deploys the application.
type RelationConfig struct {
	Name      string `json:"name" yaml:"name" toml:"name"`
	Interface string `json:"interface" yaml:"interface" toml:"interface"`
}

// RoleConfig is the content of a role file.
//
// For a provider, Capabilities are offered and Ready/Config seed the published
// payload. For a consumer, Capabilities are required and Ready/Config are
// ignored.
type RoleConfig struct {
	App          string            `json:"app" yaml:"app" toml:"app"`
	Role         Role              `json:"role" yaml:"role" toml:"role"`
	Relation     RelationConfig    `json:"relation" yaml:"relation" toml:"relation"`
	Capabilities map[string]string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
	Ready        bool              `json:"ready" yaml:"ready" toml:"ready"`
	Config       string            `json:"config" yaml:"config" toml:"config"`
}

// CapabilitySet returns the configured capabilities as a set.
func (c *RoleConfig) CapabilitySet() ir.CapabilitySet {
	return ir.CapabilitySet(c.Capabilities).Clone()
}

// Validate checks the role file and returns every problem found.
func (c *RoleConfig) Validate() ValidationErrors {
	var errs ValidationErrors
	if c.App == "" {
		errs = append(errs, ValidationError{Field: "app", Message: "must not be empty"})
	}
	if !c.Role.Valid() {
		errs = append(errs, ValidationError{Field: "role", Value: string(c.Role), Message: "must be provider or consumer"})
	}
	if c.Relation.Name == "" {
		errs = append(errs, ValidationError{Field: "relation.name", Message: "must not be empty"})
	}
	if c.Relation.Interface == "" {
		errs = append(errs, ValidationError{Field: "relation.interface", Message: "must not be empty"})
	}
	caps := ir.CapabilitySet(c.Capabilities)
	for _, name := range caps.Names() {
		if err := (ir.CapabilitySet{name: caps[name]}).Validate(); err != nil {
			errs = append(errs, ValidationError{Field: "capabilities." + name, Value: caps[name], Message: err.Error()})
		}
	}
	return errs
}

// LoadRole reads and validates a role file. The format follows the
// extension: .cue, .yaml/.yml or .toml.
func LoadRole(path string) (*RoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("role config load failed (%s): %w", path, err)
	}

	var cfg *RoleConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		cfg, err = ParseRoleCUE(data, path)
	case ".yaml", ".yml":
		cfg, err = ParseRoleYAML(data)
	case ".toml":
		cfg, err = ParseRoleTOML(data)
	default:
		return nil, fmt.Errorf("role config %s: unsupported extension %q (want .cue, .yaml, .yml or .toml)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("role config parse failed (%s): %w", path, err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// ParseRoleCUE decodes a CUE role file. The file must evaluate to concrete
// values; constraints written alongside the data are checked by CUE itself.
func ParseRoleCUE(data []byte, filename string) (*RoleConfig, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	var cfg RoleConfig
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &cfg, nil
}

// ParseRoleYAML decodes a YAML role file, rejecting unknown keys.
func ParseRoleYAML(data []byte) (*RoleConfig, error) {
	var cfg RoleConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseRoleTOML decodes a TOML role file, rejecting unknown keys.
func ParseRoleTOML(data []byte) (*RoleConfig, error) {
	var cfg RoleConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
