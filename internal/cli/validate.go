package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationIssue is one problem found in a scene file.
type ValidationIssue struct {
	File    string `json:"file,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Scenes []string          `json:"scenes,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene-file-or-dir>",
		Short: "Validate scene files without running them",
		Long: `Validate CUE scene files without running them.

Checks the schema, then references, index ranges and constraint arity.
Every file is checked and every problem reported.

Examples:
  xpbd validate ./scenes
  xpbd validate ./scenes/pendulum.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadScenes(path, LoadModeCollectAll)
	if loadResult == nil {
		code, message := errorCode(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, "validation failed", loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	result := ValidationResult{Valid: len(loadErrors) == 0, Files: loadResult.FileCount}
	for _, s := range loadResult.Scenes {
		formatter.VerboseLog("Validated scene %s (%s)", s.Scene.Name, s.Path)
		result.Scenes = append(result.Scenes, s.Scene.Name)
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toIssue(err))
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputValidationText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func outputValidationText(f *OutputFormatter, result ValidationResult) {
	if result.Valid {
		fmt.Fprintf(f.Writer, "✓ %d scene(s) valid\n", len(result.Scenes))
		return
	}
	fmt.Fprintf(f.Writer, "✗ Validation failed (%d error(s))\n\n", len(result.Errors))
	for _, issue := range result.Errors {
		loc := issue.File
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, issue.Line)
		}
		if issue.Field != "" {
			fmt.Fprintf(f.Writer, "%s\n  %s: %s: %s\n", loc, issue.Code, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(f.Writer, "%s\n  %s: %s\n", loc, issue.Code, issue.Message)
		}
	}
}

func toIssue(err error) ValidationIssue {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return ValidationIssue{
			File:    loadErr.File,
			Field:   loadErr.Field,
			Code:    loadErr.Code,
			Message: loadErr.Message,
			Line:    loadErr.Line(),
		}
	}
	return ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
}

// errorCode extracts error code and message from an error.
func errorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
