package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/artifact"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/config"
)

// options holds the global flags.
type options struct {
	configPath   string
	project      string
	apiURL       string
	dest         string
	artifactName string
	channel      string
	retries      int
	timeout      time.Duration
	verbose      bool
}

// app carries what every subcommand needs.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
}

// execute runs the CLI with args and reports any failure on stderr.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(stderr, err, a.opts.verbose)
	}
	return err
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paperfetch <version>",
		Short: "Resolve and fetch a PaperMC server build",
		Long: `paperfetch resolves a game version to the newest published build of a
PaperMC project, downloads it, verifies its checksum and promotes it
atomically to a fixed path in the destination directory.

Configuration is read from paperfetch.lua (or --config), then
PAPERFETCH_API_URL, PAPERFETCH_DEST and PAPERFETCH_PROJECT, then flags.`,
		Example: `  paperfetch 1.21.4
  paperfetch latest --dest /opt/paper
  paperfetch resolve 1.21.4 --out paper.pin.yaml
  paperfetch fetch --pin paper.pin.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runPipeline,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "path to a Lua config file (default: ./"+config.DefaultConfigFile+")")
	flags.StringVar(&a.opts.project, "project", "", "API project to resolve (default \""+config.DefaultProject+"\")")
	flags.StringVar(&a.opts.apiURL, "api-url", "", "root URL of the build API")
	flags.StringVar(&a.opts.dest, "dest", "", "destination directory (default \""+config.DefaultDest+"\")")
	flags.StringVar(&a.opts.artifactName, "artifact-name", "", "file name of the artifact in the destination (\"\" keeps the upstream name)")
	flags.StringVar(&a.opts.channel, "channel", "", "build selection policy: latest or stable")
	flags.IntVar(&a.opts.retries, "retries", 0, "retries after the first attempt of each network call")
	flags.DurationVar(&a.opts.timeout, "timeout", 0, "timeout of one metadata request")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "debug logging and detailed errors")

	root.AddCommand(
		a.newResolveCmd(),
		a.newFetchCmd(),
		a.newVersionsCmd(),
		a.newVersionCmd(),
	)
	return root
}

// runPipeline handles `paperfetch <version>`.
func (a *app) runPipeline(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, cmd.UsageString())
		return artifact.NewError(artifact.StageResolve, artifact.ErrConfiguration, errors.New("missing version argument"))
	}

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := a.logger()

	deps, err := newServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	pipeline := &artifact.Pipeline{
		Resolver: deps.resolver,
		Fetcher:  deps.fetcher,
		Logger:   logger,
	}
	file, err := pipeline.Run(cmd.Context(), args[0], cfg.Dest)
	if err != nil {
		return err
	}

	printArtifact(a.stdout, file)
	return nil
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "paperfetch %s\n", Version)
			fmt.Fprintf(a.stdout, "  commit:  %s\n", commit)
			fmt.Fprintf(a.stdout, "  built:   %s\n", date)
		},
	}
}
