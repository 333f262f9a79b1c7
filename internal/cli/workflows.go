package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smooshr/backend/internal/document"
	"smooshr/backend/internal/reference"
	"smooshr/backend/pkg/models"
)

func newWorkflowsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"workflow", "wf"},
		Short:   "Create, inspect and edit workflows",
	}
	cmd.AddCommand(
		newWorkflowsListCmd(a),
		newWorkflowsCreateCmd(a),
		newWorkflowsShowCmd(a),
		newWorkflowsRenameCmd(a),
		newWorkflowsGetCmd(a),
		newWorkflowsSetCmd(a),
		newWorkflowsDeleteCmd(a),
	)
	return cmd
}

func newWorkflowsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workflows, err := a.client.ListWorkflows(cmd.Context())
			if err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}
			if len(workflows) == 0 && a.flagOutput == outputTable {
				fmt.Fprintln(cmd.OutOrStdout(), "No workflows found.")
				return nil
			}
			return a.print(cmd.OutOrStdout(), workflows, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tTITLE\tCREATED")
				for _, wf := range workflows {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", wf.ID, wf.Title, ago(wf.CreatedDate))
				}
			})
		},
	}
}

func newWorkflowsCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create an empty workflow",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.client.CreateWorkflow(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("create workflow: %w", err)
			}
			return a.print(cmd.OutOrStdout(), wf, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Created workflow %s (%s)\n", wf.ID, wf.Title)
			})
		},
	}
}

func newWorkflowsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow and its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.workflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), wf, func(tw *tabwriter.Writer) {
				writeWorkflow(tw, wf)
			})
		},
	}
}

func writeWorkflow(tw *tabwriter.Writer, wf models.Workflow) {
	s := wf.Schema
	fmt.Fprintf(tw, "ID:\t%s\n", wf.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", wf.Title)
	fmt.Fprintf(tw, "Created:\t%s\n", ago(wf.CreatedDate))
	fmt.Fprintf(tw, "Schema version:\t%s\n", s.Version)

	fmt.Fprintf(tw, "\nOperations (%d)\n", len(s.Operations))
	if len(s.Operations) > 0 {
		fmt.Fprintln(tw, "#\tID\tTYPE\tTITLE\tDETAIL")
		for i, op := range s.Operations {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, op.ID, op.Type, op.Title, operationDetail(s, op))
		}
	}

	fmt.Fprintf(tw, "\nColumn rulesets (%d)\n", len(s.FieldsetSchemas))
	if len(s.FieldsetSchemas) > 0 {
		fmt.Fprintln(tw, "#\tID\tNAME\tCOLUMNS\tEXTRA COLUMNS")
		for i, fs := range s.FieldsetSchemas {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, fs.ID, fs.Name,
				orDash(strings.Join(fs.FieldNames(), ", ")), fs.AllowExtraColumns)
		}
	}

	fmt.Fprintf(tw, "\nInputs (%d)\n", len(s.Params))
	if len(s.Params) > 0 {
		fmt.Fprintln(tw, "#\tID\tNAME\tTYPE\tREQUIRED\tREF")
		for i, p := range s.Params {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n", i+1, p.ID, p.Name, p.Type, p.Required,
				reference.ParamToReferenceString(p))
		}
	}
}

func operationDetail(s models.WorkflowSchema, op models.Operation) string {
	switch op.Type {
	case models.OperationFieldsetSchemaValidation:
		if op.FieldsetSchema.IsZero() {
			return "ruleset: none"
		}
		label, err := reference.Resolve(s, op.FieldsetSchema)
		if err != nil {
			return "ruleset: " + err.Error()
		}
		return "ruleset: " + label
	case models.OperationFileTypeValidation:
		return "expects " + op.ExpectedFileType
	case models.OperationRowCountValidation:
		bound := func(p *int) string {
			if p == nil {
				return "*"
			}
			return fmt.Sprint(*p)
		}
		return fmt.Sprintf("rows %s..%s", bound(op.MinRowCount), bound(op.MaxRowCount))
	}
	return "-"
}

func newWorkflowsRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change the title of a workflow",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return fmt.Errorf("title cannot be empty")
			}
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				return store.SetTitle(title)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed workflow %s to %q\n", args[0], title)
			return nil
		},
	}
}

func newWorkflowsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <path>",
		Short: "Print the value at a dot path, e.g. schema.operations.0.title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.client.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get workflow: %w", err)
			}
			store, err := document.Open(raw)
			if err != nil {
				return fmt.Errorf("load workflow: %w", err)
			}
			v, err := store.GetValue(args[1])
			if err != nil {
				return err
			}
			if a.flagOutput == outputYAML {
				return writeYAML(cmd.OutOrStdout(), v)
			}
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newWorkflowsSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <path> <json>",
		Short: "Set the value at a dot path and save the workflow",
		Long: `Set replaces the value at a dot path with a JSON value and saves the
workflow. A value that is not valid JSON is stored as a string.

  smooshr workflows set <id> schema.operations.0.title '"Check file"'
  smooshr workflows set <id> schema.params.0.required false`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
				value = args[2]
			}
			err := a.edit(cmd.Context(), args[0], func(store *document.Store) error {
				return store.SetValue(args[1], value)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[1])
			return nil
		},
	}
}

func newWorkflowsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteWorkflow(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted workflow %s\n", args[0])
			return nil
		},
	}
}
