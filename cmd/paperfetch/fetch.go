package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/artifact"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/pin"
)

// newFetchCmd handles `paperfetch fetch --pin <file>`: fetch a pinned build
// without consulting the metadata API.
func (a *app) newFetchCmd() *cobra.Command {
	var pinPath string

	cmd := &cobra.Command{
		Use:   "fetch --pin <file>",
		Short: "Fetch the build recorded in a pin file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pinPath == "" {
				return artifact.NewError(artifact.StageFetch, artifact.ErrConfiguration, errors.New("--pin is required"))
			}

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			pf, err := pin.Load(pinPath)
			if err != nil {
				return artifact.NewError(artifact.StageFetch, artifact.ErrConfiguration, err)
			}

			logger := a.logger()
			deps, err := newServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			d := pf.Descriptor()
			if d.Project != cfg.Project {
				logger.Warn("pin file names a different project than the configuration",
					"pin", d.Project, "config", cfg.Project)
			}

			file, err := deps.fetcher.Fetch(cmd.Context(), d, cfg.Dest)
			if err != nil {
				return err
			}
			printArtifact(a.stdout, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&pinPath, "pin", "", "pin file written by 'paperfetch resolve'")
	return cmd
}
