package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"smooshr/backend/internal/document"
	"smooshr/backend/internal/editor"
	"smooshr/backend/internal/reference"
	"smooshr/backend/pkg/models"
)

func newFieldsetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fieldsets",
		Aliases: []string{"rulesets"},
		Short:   "Manage the column rulesets of a workflow",
	}
	cmd.AddCommand(
		newFieldsetsAddCmd(a),
		newFieldsetsRenameCmd(a),
		newFieldsetsRemoveCmd(a),
		newFieldsetsFieldCmd(a),
	)
	return cmd
}

func newFieldsetsAddCmd(a *app) *cobra.Command {
	var (
		name         string
		fromCSV      string
		extraColumns string
		orderMatters bool
	)
	cmd := &cobra.Command{
		Use:   "add <workflow id>",
		Short: "Add a column ruleset, optionally from the header row of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var added models.FieldsetSchema
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				fs := editor.NewFieldsetSchema(len(schema.FieldsetSchemas) + 1)
				if fromCSV != "" {
					f, err := os.Open(fromCSV)
					if err != nil {
						return err
					}
					defer f.Close()
					fs, err = editor.FieldsetSchemaFromCSV(strings.TrimSuffix(filepath.Base(fromCSV), filepath.Ext(fromCSV)), f)
					if err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("name") {
					fs.Name = name
				}
				if cmd.Flags().Changed("order-matters") {
					fs.OrderMatters = orderMatters
				}
				if cmd.Flags().Changed("extra-columns") {
					policy := models.ExtraColumnsPolicy(extraColumns)
					if !policy.Valid() {
						return fmt.Errorf("unknown extra columns policy %q", extraColumns)
					}
					fs.AllowExtraColumns = policy
				}
				added = fs
				return store.AddFieldsetSchema(fs)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added column ruleset %s (%s) with %d columns\n", added.ID, added.Name, len(added.Fields))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Ruleset name")
	cmd.Flags().StringVar(&fromCSV, "from-csv", "", "CSV file whose header row becomes the column list")
	cmd.Flags().StringVar(&extraColumns, "extra-columns", "", "Where extra columns are allowed (no, anywhere, onlyAfterSchemaFields)")
	cmd.Flags().BoolVar(&orderMatters, "order-matters", true, "Require columns in ruleset order")
	return cmd
}

func newFieldsetsRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <workflow id> <index> <name>",
		Short: "Rename the column ruleset at a position (1-based)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args[2:], " ")
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i, err := parseIndex(args[1], len(schema.FieldsetSchemas), "ruleset")
				if err != nil {
					return err
				}
				return store.UpdateFieldsetSchemaByIndex(i, func(fs models.FieldsetSchema) models.FieldsetSchema {
					fs.Name = name
					return fs
				})
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed column ruleset %s to %q\n", args[1], name)
			return nil
		},
	}
}

func newFieldsetsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <workflow id> <index>",
		Short: "Remove the column ruleset at a position (1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i, err := parseIndex(args[1], len(schema.FieldsetSchemas), "ruleset")
				if err != nil {
					return err
				}
				return store.RemoveFieldsetSchemaByIndex(i)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed column ruleset %s\n", args[1])
			return nil
		},
	}
}

func newFieldsetsFieldCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "field",
		Aliases: []string{"column"},
		Short:   "Edit the column rules of a ruleset",
	}
	cmd.AddCommand(newFieldsetsFieldSetCmd(a))
	return cmd
}

func newFieldsetsFieldSetCmd(a *app) *cobra.Command {
	var (
		name          string
		required      bool
		dataType      string
		format        string
		caseSensitive bool
		allowEmpty    bool
		allowed       []string
		allowedFrom   string
		unconstrained bool
	)
	cmd := &cobra.Command{
		Use:   "set <workflow id> <ruleset index> <column index>",
		Short: "Change the rule of a column (1-based positions)",
		Long: `Set changes only the parts of the rule given as flags. Allowed values are
either an explicit list, the values supplied for a string list input, or
unconstrained.

  smooshr fieldsets field set <id> 1 2 --type timestamp --format %Y-%m-%d
  smooshr fieldsets field set <id> 1 3 --allowed-from region_codes`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var updated models.FieldSchema
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i, err := parseIndex(args[1], len(schema.FieldsetSchemas), "ruleset")
				if err != nil {
					return err
				}
				j, err := parseIndex(args[2], len(schema.FieldsetSchemas[i].Fields), "column")
				if err != nil {
					return err
				}
				updated, err = editor.UpdateField(store, i, j, func(f models.FieldSchema) models.FieldSchema {
					if flags.Changed("name") {
						f.Name = name
					}
					if flags.Changed("required") {
						f.Required = required
					}
					if flags.Changed("case-sensitive") {
						f.CaseSensitive = caseSensitive
					}
					if flags.Changed("allow-empty") {
						f.AllowEmptyValues = allowEmpty
					}
					if flags.Changed("type") {
						f.DataTypeValidation = models.DataTypeValidation{DataType: models.DataType(dataType)}
					}
					if flags.Changed("format") {
						f.DataTypeValidation.DateTimeFormat = format
					}
					switch {
					case flags.Changed("allowed"):
						f.AllowedValues = models.AllowedList(allowed...)
					case flags.Changed("allowed-from"):
						f.AllowedValues = models.AllowedValues{Kind: models.AllowedValuesParam, Param: paramReference(schema, allowedFrom)}
					case unconstrained:
						f.AllowedValues = models.AllowedValues{}
					}
					return f
				})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated column %s\n", updated.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Column name")
	cmd.Flags().BoolVar(&required, "required", true, "Require the column to be present")
	cmd.Flags().StringVar(&dataType, "type", "", "Data type (any, string, number, timestamp)")
	cmd.Flags().StringVar(&format, "format", "", "strftime format of timestamp values")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", true, "Match the column name case-sensitively")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "Accept empty cells")
	cmd.Flags().StringSliceVar(&allowed, "allowed", nil, "Explicit allowed values (comma separated)")
	cmd.Flags().StringVar(&allowedFrom, "allowed-from", "", "Take allowed values from a string list input (name or param:<id>)")
	cmd.Flags().BoolVar(&unconstrained, "unconstrained", false, "Accept any value")
	cmd.MarkFlagsMutuallyExclusive("allowed", "allowed-from", "unconstrained")
	return cmd
}

// paramReference resolves an input given by variable name or as a
// "param:<id>" reference string.
func paramReference(schema models.WorkflowSchema, s string) models.ParamReference {
	if reference.IsReferenceString(s) {
		return reference.FromReferenceString(s)
	}
	if p, ok := schema.ParamByName(s); ok {
		return models.ParamReference{ParamID: p.ID}
	}
	return models.ParamReference{ParamID: s}
}
