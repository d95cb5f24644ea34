package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON file against a stage contract or a schema file",
	Long: `Validates a JSON document against the contract of a stage (--stage, with
--version for an older contract) or against a JSON Schema file (--schema).`,
	RunE: runValidate,
}

var contractsCmd = &cobra.Command{
	Use:   "contracts [stage]",
	Short: "List stage contracts, or print the outline of one stage's contract",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runContracts,
}

var (
	validateJSONPath string
	validateSchema   string
	validateStage    string
	validateVersion  int

	contractsVersion int
)

func init() {
	validateCmd.Flags().StringVar(&validateJSONPath, "json", "", "Path to the JSON file to validate (required)")
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Path to a JSON Schema file")
	validateCmd.Flags().StringVar(&validateStage, "stage", "", "Stage whose contract to validate against")
	validateCmd.Flags().IntVar(&validateVersion, "version", 0, "Contract version (default latest)")
	if err := validateCmd.MarkFlagRequired("json"); err != nil {
		panic(fmt.Sprintf("failed to mark json flag as required: %v", err))
	}
	validateCmd.MarkFlagsMutuallyExclusive("schema", "stage")

	contractsCmd.Flags().IntVar(&contractsVersion, "version", 0, "Contract version to outline (default latest)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(contractsCmd)
}

func lookupContract(stage string, version int) (*schemas.Contract, error) {
	if version == 0 {
		return schemas.Latest(schemas.Stage(stage))
	}
	return schemas.Lookup(schemas.Stage(stage), version)
}

// validateFile checks jsonPath and reports the outcome on out.
func validateFile(out io.Writer, jsonPath, schemaPath, stage string, version int) error {
	var err error
	switch {
	case schemaPath != "":
		err = schemas.ValidateJSON(schemaPath, jsonPath)
	case stage != "":
		c, lookupErr := lookupContract(stage, version)
		if lookupErr != nil {
			return lookupErr
		}
		content, readErr := os.ReadFile(jsonPath)
		if readErr != nil {
			return fmt.Errorf("JSON file not found: %s", jsonPath)
		}
		err = c.Validate(string(content))
	default:
		return fmt.Errorf("either --schema or --stage must be provided")
	}

	var validationErr *schemas.ValidationError
	if errors.As(err, &validationErr) {
		_, _ = fmt.Fprintln(out, "Validation failed:")
		for _, fe := range validationErr.Errors {
			_, _ = fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message)
		}
		return fmt.Errorf("validation failed with %d error(s)", len(validationErr.Errors))
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Validation passed")
	return nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	return validateFile(cmd.OutOrStdout(), validateJSONPath, validateSchema, validateStage, validateVersion)
}

// listContracts prints every stage with its contract versions, latest last.
func listContracts(out io.Writer) {
	for _, stage := range schemas.AllStages() {
		_, _ = fmt.Fprintf(out, "%-22s %v\n", stage, schemas.Versions(stage))
	}
}

func runContracts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		listContracts(out)
		return nil
	}
	c, err := lookupContract(args[0], contractsVersion)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s\n\n%s\n", c.Name(), c.Outline())
	return nil
}
