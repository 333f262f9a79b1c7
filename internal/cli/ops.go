package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"smooshr/backend/internal/document"
	"smooshr/backend/internal/editor"
	"smooshr/backend/internal/reference"
	"smooshr/backend/pkg/models"
)

// opFlags are the form fields of the operation editors.
type opFlags struct {
	title       string
	description string
	fileType    string
	ruleset     string
	min         int
	max         int
}

func (f *opFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "Operation title")
	fs.StringVar(&f.description, "description", "", "Operation description")
	fs.StringVar(&f.fileType, "file-type", "", "Expected file type ("+strings.Join(editor.FileTypeOptions, ", ")+")")
	fs.StringVar(&f.ruleset, "ruleset", "", "Column ruleset id, ruleset name, or param:<param id>")
	fs.IntVar(&f.min, "min", 0, "Minimum row count")
	fs.IntVar(&f.max, "max", 0, "Maximum row count")
}

// apply copies the flags that were set on the command line onto op.
func (f *opFlags) apply(fs *pflag.FlagSet, schema models.WorkflowSchema, op *models.Operation) {
	if fs.Changed("title") {
		op.Title = f.title
	}
	if fs.Changed("description") {
		d := f.description
		op.Description = &d
	}
	if fs.Changed("file-type") {
		op.ExpectedFileType = f.fileType
	}
	if fs.Changed("ruleset") {
		op.FieldsetSchema = rulesetSelection(schema, f.ruleset).Ref()
	}
	if fs.Changed("min") {
		v := f.min
		op.MinRowCount = &v
	}
	if fs.Changed("max") {
		v := f.max
		op.MaxRowCount = &v
	}
}

// rulesetSelection accepts a ruleset name where an id was expected.
func rulesetSelection(schema models.WorkflowSchema, s string) reference.Selection {
	sel := reference.ParseSelection(s)
	if sel.Kind == models.RefKindFieldset {
		if _, ok := schema.FieldsetSchemaByID(s); !ok {
			if fs, ok := schema.FieldsetSchemaByName(s); ok {
				sel.ID = fs.ID
			}
		}
	}
	return sel
}

func newOpsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ops",
		Aliases: []string{"operations"},
		Short:   "Add, update and remove workflow operations",
	}
	cmd.AddCommand(
		newOpsAddCmd(a),
		newOpsUpdateCmd(a),
		newOpsRemoveCmd(a),
	)
	return cmd
}

func operationTypeNames() string {
	names := make([]string, len(models.OperationTypes))
	for i, t := range models.OperationTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func newOpsAddCmd(a *app) *cobra.Command {
	var f opFlags
	cmd := &cobra.Command{
		Use:   "add <workflow id> <type>",
		Short: "Append an operation",
		Long:  "Append an operation of one of these types: " + operationTypeNames() + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := editor.NewOperation(models.OperationType(args[1]))
			if err != nil {
				return err
			}
			var added models.Operation
			err = a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				f.apply(cmd.Flags(), schema, &op)
				added, err = editor.SubmitAndApply(store, editor.ModeAdd, op)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added operation %s (%s)\n", added.ID, added.Title)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newOpsUpdateCmd(a *app) *cobra.Command {
	var f opFlags
	cmd := &cobra.Command{
		Use:   "update <workflow id> <operation id>",
		Short: "Change the fields of an operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i := schema.OperationIndex(args[1])
				if i < 0 {
					return fmt.Errorf("no operation with id %s", args[1])
				}
				op := schema.Operations[i]
				f.apply(cmd.Flags(), schema, &op)
				_, err = editor.SubmitAndApply(store, editor.ModeUpdate, op)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated operation %s\n", args[1])
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newOpsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <workflow id> <index>",
		Short: "Remove the operation at a position (1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i, err := parseIndex(args[1], len(schema.Operations), "operation")
				if err != nil {
					return err
				}
				return store.RemoveOperationByIndex(i)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed operation %s\n", args[1])
			return nil
		},
	}
}
