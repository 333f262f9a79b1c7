package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"smooshr/backend/internal/harness"
)

// ErrValidationFailed is returned by run when the report has failures.
var ErrValidationFailed = errors.New("validation failed")

func newRunCmd(a *app) *cobra.Command {
	var inputs []string
	cmd := &cobra.Command{
		Use:   "run <workflow id> <csv file>",
		Short: "Test-run a workflow against a CSV file",
		Long: `Run uploads a CSV file and validates it with the workflow's operations.
Inputs are given as name=value; string list inputs take comma separated values.

  smooshr run <id> data.csv --input region=EU --input codes=A,B,C`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.workflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			h := harness.New(a.client, wf.Schema)
			if err := h.SetAssignments(inputs); err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := h.Run(cmd.Context(), wf.ID, filepath.Base(args[1]), f)
			if err != nil {
				return fmt.Errorf("run workflow: %w", err)
			}

			out := cmd.OutOrStdout()
			switch a.flagOutput {
			case outputTable:
				if err := harness.Render(out, report); err != nil {
					return err
				}
			default:
				if err := a.print(out, report, nil); err != nil {
					return err
				}
			}
			if !report.Succeeded() {
				return ErrValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Input value as name=value (repeatable)")
	return cmd
}
