package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/artifact"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/pin"
)

// newResolveCmd handles `paperfetch resolve <version>`: resolution only,
// recorded as a pin file.
func (a *app) newResolveCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "resolve <version>",
		Short: "Resolve a version to a build and write a pin file",
		Long: `Resolves a version (or "latest") to the newest matching build and prints
it as a YAML pin file. With --out the pin file is written atomically to that
path instead; "paperfetch fetch --pin" later fetches exactly that build.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			deps, err := newServices(cmd.Context(), cfg, a.logger())
			if err != nil {
				return err
			}

			d, err := deps.resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			pf := pin.FromDescriptor(d)
			if out == "" {
				if err := pin.Encode(a.stdout, pf); err != nil {
					return artifact.NewError(artifact.StageResolve, artifact.ErrDisk, err)
				}
				return nil
			}
			if err := pin.Save(out, pf); err != nil {
				return artifact.NewError(artifact.StageResolve, artifact.ErrDisk, err)
			}
			fmt.Fprintf(a.stdout, "pinned %s to %s\n", d, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the pin file to this path instead of stdout")
	return cmd
}
