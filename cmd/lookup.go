package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newLookupCmd fetches one show and prints the parsed profile as JSON. It
// does not connect to the database.
func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "lookup <url|uri>",
		Short:       "Fetch one show and print its profile as JSON",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipDatabase: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := appInstance.Lookup(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(profile); err != nil {
				return fmt.Errorf("encode profile: %w", err)
			}
			return nil
		},
	}
}
