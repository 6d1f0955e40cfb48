package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionsCmd handles `paperfetch versions`.
func (a *app) newVersionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List the project's versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			deps, err := newServices(cmd.Context(), cfg, a.logger())
			if err != nil {
				return err
			}

			versions, err := deps.resolver.Versions(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(versions) > limit {
				versions = versions[:limit]
			}
			for _, v := range versions {
				fmt.Fprintln(a.stdout, v)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many versions (0 = all)")
	return cmd
}
