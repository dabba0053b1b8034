package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nianio/internal/compiler"
	"github.com/roach88/nianio/internal/game"
	"github.com/roach88/nianio/internal/harness"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Describe bool   // print the schema in PTD notation
	Value    string // JSON file to check against Type
	Type     string
}

// SchemaReport describes one validated schema.
type SchemaReport struct {
	Path    string   `json:"path"`
	Valid   bool     `json:"valid"`
	Types   []string `json:"types,omitempty"`
	Workers []string `json:"workers,omitempty"`
	Error   string   `json:"error,omitempty"`

	// PTD is set with --describe.
	PTD ir.Value `json:"ptd,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Schemas []SchemaReport `json:"schemas"`
	Value   *ValueReport   `json:"value,omitempty"`
}

// ValueReport is the outcome of --value.
type ValueReport struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// embeddedSchema names the game schema in reports when no file is given.
const embeddedSchema = "<game>"

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [schema-file...]",
		Short: "Check schema files",
		Long: `Compile schema files and check that they are usable by the engine: the
state, cmd and extCmd roots are declared, every ref resolves and no ref
chain loops on itself.

CUE files are compiled; .json files are read as PTD notation. Without
arguments the bundled game schema is checked.

With --value, a JSON value is also checked against one type of the (single)
schema.

Examples:
  nianio validate
  nianio validate ./schema.cue --describe
  nianio validate ./schema.cue --value ./state.json --type state`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Describe, "describe", false, "print each schema in PTD notation")
	cmd.Flags().StringVar(&opts.Value, "value", "", "JSON file to check against --type")
	cmd.Flags().StringVar(&opts.Type, "type", schema.StateType, "type name used with --value")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Value != "" && len(paths) > 1 {
		return NewExitError(ExitCommandError, "--value needs exactly one schema")
	}

	result := ValidationResult{Valid: true}
	var last schema.Registry

	if len(paths) == 0 {
		paths = []string{embeddedSchema}
	}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		report, reg := validateSchema(path, opts.Describe)
		if !report.Valid {
			result.Valid = false
		}
		result.Schemas = append(result.Schemas, report)
		last = reg
	}

	if opts.Value != "" && last != nil {
		vr := checkValue(last, opts.Value, opts.Type)
		if !vr.Valid {
			result.Valid = false
		}
		result.Value = &vr
	}

	if opts.Format == "json" {
		var failed *CLIError
		if !result.Valid {
			failed = &CLIError{Code: ErrCodeSchema, Message: "validation failed"}
		}
		if err := formatter.Result(result, failed); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func validateSchema(path string, describe bool) (SchemaReport, schema.Registry) {
	report := SchemaReport{Path: path}

	var (
		reg schema.Registry
		err error
	)
	if path == embeddedSchema {
		reg, err = game.Schema()
	} else {
		reg, err = compiler.LoadSchemaFile(path)
	}
	if err == nil {
		err = reg.Validate()
	}
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}

	report.Valid = true
	report.Types = reg.Names()
	if workers, err := harness.WorkerNames(reg); err == nil {
		report.Workers = workers
	}
	if describe {
		report.PTD = schema.DescribeRegistry(reg)
	}
	return report, reg
}

func checkValue(reg schema.Registry, path, typeName string) ValueReport {
	report := ValueReport{Path: path, Type: typeName}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	v, err := ir.Decode(data)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if err := schema.Verify(v, typeName, reg); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			report.Error = ve.Detail()
		} else {
			report.Error = err.Error()
		}
		return report
	}
	report.Valid = true
	return report
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	for _, s := range result.Schemas {
		if !s.Valid {
			fmt.Fprintf(f.Writer, "✗ %s\n  %s\n", s.Path, s.Error)
			continue
		}
		fmt.Fprintf(f.Writer, "✓ %s (%d types, workers: %v)\n", s.Path, len(s.Types), s.Workers)
		if s.PTD != nil {
			fmt.Fprintf(f.Writer, "  %s\n", ir.MustMarshalString(s.PTD))
		}
	}
	if v := result.Value; v != nil {
		if v.Valid {
			fmt.Fprintf(f.Writer, "✓ %s is a valid %s\n", v.Path, v.Type)
		} else {
			fmt.Fprintf(f.Writer, "✗ %s is not a valid %s\n  %s\n", v.Path, v.Type, v.Error)
		}
	}
}
