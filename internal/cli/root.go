package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/balbirthomas/operator/internal/config"
)

// RootOptions holds global flags and the settings resolved from them.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	SettingsFile string

	// Resolved in PersistentPreRunE.
	Settings config.Settings
	Logger   *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the relnego CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Settings: config.DefaultSettings()}
	defaults := config.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "relnego",
		Short: "relnego - relation capability negotiation",
		Long: `Host provider and consumer applications that negotiate capability
versions over a relation, and run lifecycle scenarios against them.

Settings are read from flags, RELNEGO_* environment variables and an
optional settings file, in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (implies --log-level debug)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.SettingsFile, "settings", "", "settings file (yaml, toml or json)")
	flags.String("log-level", defaults.LogLevel, "log level (debug|info|warn|error)")
	flags.String("log-format", defaults.LogFormat, "log format (text|json)")
	flags.String("db", defaults.DBPath, "path to the SQLite relation database")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewRelateCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// resolve loads settings through viper, with the persistent flags bound over
// environment and file values, and builds the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	v, err := config.NewViper(o.SettingsFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	bindings := map[string]string{
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
		config.KeyDBPath:    "db",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return WrapExitError(ExitCommandError, "failed to bind flag --"+flag, err)
		}
	}

	settings, err := config.LoadSettings(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	if o.Verbose {
		settings.LogLevel = "debug"
	}
	o.Settings = settings
	o.Logger = newLogger(settings, cmd.ErrOrStderr())
	return nil
}

// logger returns the configured logger, or a discarding one when the command
// runs without the root (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o *RootOptions) dbPath() string {
	if o.Settings.DBPath == "" {
		return config.DefaultSettings().DBPath
	}
	return o.Settings.DBPath
}

func newLogger(s config.Settings, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: s.Level()}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
