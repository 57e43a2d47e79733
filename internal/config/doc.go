// Package config loads the two kinds of configuration relnego uses.
//
// A role file describes the local application's side of one relation: its
// name, whether it provides or consumes, and the capabilities offered or
// required. Role files may be written in CUE, YAML or TOML; the format is
// chosen by file extension and unknown keys are rejected.
//
// Settings are process-wide knobs (log level and format, database path)
// resolved through viper from defaults, an optional settings file, RELNEGO_*
// environment variables and command-line flags.
package config
