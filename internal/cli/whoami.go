package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.GetSelf(cmd.Context())
			if err != nil {
				return fmt.Errorf("get user: %w", err)
			}
			return a.print(cmd.OutOrStdout(), u, func(tw *tabwriter.Writer) {
				name := strings.TrimSpace(u.GivenName + " " + u.FamilyName)
				fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
				fmt.Fprintf(tw, "Email:\t%s\n", orDash(u.Email))
				fmt.Fprintf(tw, "Name:\t%s\n", orDash(name))
				fmt.Fprintf(tw, "Provider:\t%s\n", orDash(u.IdentityProvider))
				fmt.Fprintf(tw, "Since:\t%s\n", ago(u.CreatedDate))
			})
		},
	}
}
