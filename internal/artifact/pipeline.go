package artifact

import (
	"context"
	"errors"
	"strings"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/config"
)

// Pipeline resolves a version and fetches its artifact.
type Pipeline struct {
	Resolver *Resolver
	Fetcher  *Fetcher
	Logger   config.Logger
}

// Run resolves versionSpec and fetches the result into destDir. The
// destination is checked before any request so a misconfigured run fails
// without touching the network.
func (p *Pipeline) Run(ctx context.Context, versionSpec, destDir string) (ArtifactFile, error) {
	if p.Resolver == nil || p.Fetcher == nil {
		return ArtifactFile{}, NewError(StageResolve, ErrConfiguration, errors.New("pipeline is missing a resolver or fetcher"))
	}
	logger := p.Logger
	if logger == nil {
		logger = config.NopLogger()
	}

	if err := validateVersion(strings.TrimSpace(versionSpec)); err != nil {
		return ArtifactFile{}, err
	}
	if err := CheckDestination(destDir); err != nil {
		return ArtifactFile{}, err
	}

	d, err := p.Resolver.Resolve(ctx, versionSpec)
	if err != nil {
		return ArtifactFile{}, err
	}

	file, err := p.Fetcher.Fetch(ctx, d, destDir)
	if err != nil {
		return ArtifactFile{}, err
	}

	logger.Info("pipeline complete", "build", d.String(), "path", file.Path, "skipped", file.Skipped)
	return file, nil
}
