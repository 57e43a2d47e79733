package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balbirthomas/operator/internal/config"
)

// RoleValidation is the validation outcome for one role file.
type RoleValidation struct {
	File         string            `json:"file"`
	Valid        bool              `json:"valid"`
	App          string            `json:"app,omitempty"`
	Role         string            `json:"role,omitempty"`
	Relation     string            `json:"relation,omitempty"`
	Capabilities map[string]string `json:"capabilities,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
}

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []RoleValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <role-file>...",
		Short: "Validate role configuration files",
		Long: `Validate role configuration files without hosting the application.

The format follows the extension: .cue, .yaml/.yml or .toml. Every file
is checked and every problem is reported.

Exit codes:
  0 - All files valid
  1 - One or more files invalid

Examples:
  relnego validate provider.cue
  relnego validate roles/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result := ValidationResult{Valid: true, Files: make([]RoleValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		rv := validateRoleFile(file)
		if !rv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, rv)
	}

	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result, "")
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeInvalidRole, Message: "role validation failed"},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "role validation failed")
	}

	w := cmd.OutOrStdout()
	for _, rv := range result.Files {
		if rv.Valid {
			fmt.Fprintf(w, "\u2713 %s (%s %s on %s)\n", rv.File, rv.Role, rv.App, rv.Relation)
			continue
		}
		fmt.Fprintf(w, "\u2717 %s\n", rv.File)
		for _, e := range rv.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "role validation failed")
	}
	return nil
}

func validateRoleFile(path string) RoleValidation {
	rv := RoleValidation{File: path}

	role, err := config.LoadRole(path)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				rv.Errors = append(rv.Errors, e.Error())
			}
		} else {
			rv.Errors = []string{strings.TrimSpace(err.Error())}
		}
		return rv
	}

	rv.Valid = true
	rv.App = role.App
	rv.Role = string(role.Role)
	rv.Relation = role.Relation.Name + "/" + role.Relation.Interface
	rv.Capabilities = role.Capabilities
	return rv
}
