package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smooshr/backend/internal/document"
	"smooshr/backend/internal/editor"
	"smooshr/backend/pkg/models"
)

func newParamsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "params",
		Aliases: []string{"inputs"},
		Short:   "Manage the run inputs of a workflow",
	}
	cmd.AddCommand(
		newParamsAddCmd(a),
		newParamsUpdateCmd(a),
		newParamsRemoveCmd(a),
	)
	return cmd
}

func newParamsAddCmd(a *app) *cobra.Command {
	var (
		displayName string
		paramType   string
		description string
		optional    bool
	)
	cmd := &cobra.Command{
		Use:   "add <workflow id>",
		Short: "Add a run input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := models.ParamType(paramType)
			if !t.Valid() {
				return fmt.Errorf("unknown input type %q (string, number, string list)", paramType)
			}
			var added models.WorkflowParam
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				p := editor.NewParam(len(schema.Params) + 1)
				if displayName != "" {
					p = p.WithDisplayName(displayName)
				}
				if _, taken := schema.ParamByName(p.Name); taken {
					return fmt.Errorf("an input named %s already exists", p.Name)
				}
				p.Type = t
				p.Description = description
				p.Required = !optional
				added = p
				return store.AddParam(p)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added input %s (%s)\n", added.Name, added.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "Display name; the variable name is derived from it")
	cmd.Flags().StringVar(&paramType, "type", string(models.ParamTypeString), "Value type (string, number, string list)")
	cmd.Flags().StringVar(&description, "description", "", "Input description")
	cmd.Flags().BoolVar(&optional, "optional", false, "Allow runs without a value")
	return cmd
}

func newParamsUpdateCmd(a *app) *cobra.Command {
	var (
		displayName string
		paramType   string
		description string
		optional    bool
	)
	cmd := &cobra.Command{
		Use:   "update <workflow id> <index>",
		Short: "Change the run input at a position (1-based)",
		Long: `Update changes only the fields given as flags. A new --name also renames the
variable the input is referenced by in run values.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("type") && !models.ParamType(paramType).Valid() {
				return fmt.Errorf("unknown input type %q (string, number, string list)", paramType)
			}
			var updated models.WorkflowParam
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i, err := parseIndex(args[1], len(schema.Params), "input")
				if err != nil {
					return err
				}
				p := schema.Params[i]
				if flags.Changed("name") {
					p = p.WithDisplayName(displayName)
					if other, taken := schema.ParamByName(p.Name); taken && other.ID != p.ID {
						return fmt.Errorf("an input named %s already exists", p.Name)
					}
				}
				if flags.Changed("type") {
					p.Type = models.ParamType(paramType)
				}
				if flags.Changed("description") {
					p.Description = description
				}
				if flags.Changed("optional") {
					p.Required = !optional
				}
				updated = p
				return store.UpdateParam(p)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated input %s (%s)\n", updated.Name, updated.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "Display name; the variable name is derived from it")
	cmd.Flags().StringVar(&paramType, "type", "", "Value type (string, number, string list)")
	cmd.Flags().StringVar(&description, "description", "", "Input description")
	cmd.Flags().BoolVar(&optional, "optional", false, "Allow runs without a value (--optional=false makes it required)")
	return cmd
}

func newParamsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <workflow id> <index>",
		Short: "Remove the run input at a position (1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				schema, err := store.Schema()
				if err != nil {
					return err
				}
				i, err := parseIndex(args[1], len(schema.Params), "input")
				if err != nil {
					return err
				}
				return store.RemoveParamByIndex(i)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed input %s\n", args[1])
			return nil
		},
	}
}
