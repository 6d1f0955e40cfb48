package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/artifact"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/paperapi"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/platform"
)

// services are the wired pipeline components for one invocation.
type services struct {
	resolver *artifact.Resolver
	fetcher  *artifact.Fetcher
}

// loadConfig builds the effective configuration: file, environment, then
// any flag set on the command line.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	ctx := cmd.Context()
	info, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		return nil, artifact.NewError(artifact.StageConfig, artifact.ErrConfiguration, err)
	}

	cfg, err := config.Load(ctx, a.opts.configPath, platform.StaticDetector{Info: *info})
	if err != nil {
		return nil, artifact.NewError(artifact.StageConfig, artifact.ErrConfiguration, err)
	}

	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.Project = a.opts.project
	}
	if flags.Changed("api-url") {
		cfg.APIURL = a.opts.apiURL
	}
	if flags.Changed("dest") {
		cfg.Dest = a.opts.dest
	}
	if flags.Changed("artifact-name") {
		cfg.ArtifactName = a.opts.artifactName
	}
	if flags.Changed("channel") {
		cfg.Channel = a.opts.channel
	}
	if flags.Changed("retries") {
		cfg.Retry.Retries = a.opts.retries
	}
	if flags.Changed("timeout") {
		cfg.Retry.AttemptTimeout = a.opts.timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, artifact.NewError(artifact.StageConfig, artifact.ErrConfiguration, err)
	}

	cfg.UserAgent = platform.UserAgent(cfg.UserAgent, info)
	return cfg, nil
}

// logger writes progress to stderr so stdout stays machine-readable.
func (a *app) logger() config.Logger {
	return config.NewTextLogger(a.stderr, a.opts.verbose)
}

// newServices wires the API client, resolver and fetcher from cfg.
func newServices(ctx context.Context, cfg *config.Config, logger config.Logger) (*services, error) {
	client, err := paperapi.NewClient(cfg.APIURL, paperapi.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return nil, artifact.NewError(artifact.StageConfig, artifact.ErrConfiguration, err)
	}

	fetchOpts := []artifact.FetcherOption{
		artifact.WithDownloadPolicy(cfg.DownloadPolicy()),
		artifact.WithFetcherLogger(logger),
		artifact.WithArtifactName(cfg.ArtifactName),
	}
	if cfg.Verify.Keyring != "" {
		keyring, err := artifact.LoadKeyring(cfg.Verify.Keyring)
		if err != nil {
			return nil, artifact.NewError(artifact.StageConfig, artifact.ErrConfiguration, err)
		}
		fetchOpts = append(fetchOpts,
			artifact.WithKeyring(keyring),
			artifact.WithSignatureSuffix(cfg.Verify.SignatureSuffix))
	}

	logger.Debug("configuration loaded",
		"project", cfg.Project,
		"api_url", cfg.APIURL,
		"dest", cfg.Dest,
		"artifact_name", cfg.ArtifactName,
		"channel", cfg.Channel,
		"user_agent", cfg.UserAgent)

	return &services{
		resolver: artifact.NewResolver(cfg.Project, client,
			artifact.WithVersionLister(client),
			artifact.WithResolverPolicy(cfg.MetadataPolicy()),
			artifact.WithChannel(cfg.Channel),
			artifact.WithResolverLogger(logger)),
		fetcher: artifact.NewFetcher(client, fetchOpts...),
	}, nil
}

// printError reports err as "Error: <stage>: <kind>: <cause>", followed by
// a hint when one is known.
func printError(w io.Writer, err error, verbose bool) {
	var parseErr *config.ParseError
	if errors.As(err, &parseErr) {
		fmt.Fprintf(w, "Error: %s: %s: %s\n", artifact.StageConfig, artifact.ErrConfiguration, config.FormatError(parseErr, verbose))
		return
	}

	fmt.Fprintf(w, "Error: %v\n", err)

	var pErr *artifact.Error
	if errors.As(err, &pErr) && pErr.Hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", pErr.Hint)
	}
}

// printArtifact prints the descriptor and where it was stored.
func printArtifact(w io.Writer, file artifact.ArtifactFile) {
	status := "fetched"
	if file.Skipped {
		status = "up to date"
	}
	fmt.Fprintf(w, "%s: %s\n", status, file.Descriptor)
	fmt.Fprintf(w, "  path:      %s\n", file.Path)
	fmt.Fprintf(w, "  sha256:    %s\n", file.SHA256)
	fmt.Fprintf(w, "  size:      %s\n", humanSize(file.Size))
	fmt.Fprintf(w, "  mode:      %04o\n", file.Mode.Perm())
	fmt.Fprintf(w, "  verified:  %s\n", file.Verified)
	if !file.Descriptor.PublishedAt.IsZero() {
		fmt.Fprintf(w, "  published: %s\n", file.Descriptor.PublishedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}
}

// humanSize formats a byte count using binary units.
func humanSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
