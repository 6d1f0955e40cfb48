package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/paperapi"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/retry"
)

// LatestAlias resolves to the newest stable version of the project.
const LatestAlias = "latest"

// BuildLister lists the published builds of one project version.
type BuildLister interface {
	Builds(ctx context.Context, project, version string) ([]paperapi.Build, error)
}

// VersionLister describes a project and the versions it publishes.
type VersionLister interface {
	Project(ctx context.Context, project string) (*paperapi.Project, error)
}

// Resolver maps a version string to a BuildDescriptor.
type Resolver struct {
	project  string
	builds   BuildLister
	versions VersionLister
	policy   retry.Policy
	channel  string
	logger   config.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithVersionLister enables the "latest" alias and Versions.
func WithVersionLister(v VersionLister) ResolverOption {
	return func(r *Resolver) {
		r.versions = v
	}
}

// WithResolverPolicy sets the retry policy for metadata queries.
func WithResolverPolicy(p retry.Policy) ResolverOption {
	return func(r *Resolver) {
		r.policy = p
	}
}

// WithChannel sets the build selection policy (config.ChannelLatest or
// config.ChannelStable).
func WithChannel(channel string) ResolverOption {
	return func(r *Resolver) {
		r.channel = channel
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l config.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver for project backed by builds.
func NewResolver(project string, builds BuildLister, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		project: project,
		builds:  builds,
		policy:  retry.DefaultPolicy(),
		channel: config.ChannelLatest,
		logger:  config.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve selects the build for versionSpec. An empty or malformed spec
// fails with ErrConfiguration before any request is made.
func (r *Resolver) Resolve(ctx context.Context, versionSpec string) (BuildDescriptor, error) {
	version := strings.TrimSpace(versionSpec)
	if err := r.validateSetup(); err != nil {
		return BuildDescriptor{}, err
	}
	if err := validateVersion(version); err != nil {
		return BuildDescriptor{}, err
	}

	if version == LatestAlias {
		latest, err := r.latestVersion(ctx)
		if err != nil {
			return BuildDescriptor{}, err
		}
		r.logger.Info("resolved version alias", "alias", LatestAlias, "version", latest)
		version = latest
	}

	r.logger.Info("resolving build", "project", r.project, "version", version, "channel", r.channel)

	var builds []paperapi.Build
	attempts, err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		b, err := r.builds.Builds(ctx, r.project, version)
		if err != nil {
			if paperapi.IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		builds = b
		return nil
	}, r.notify("list builds"))
	if err != nil {
		return BuildDescriptor{}, r.classify(err, attempts, version)
	}

	build, ok := SelectBuild(builds, r.channel)
	if !ok {
		return BuildDescriptor{}, NewError(StageResolve, ErrVersionNotFound,
			fmt.Errorf("%s %s has no published builds", r.project, version))
	}

	app, _ := build.Application()
	d := BuildDescriptor{
		Project:     r.project,
		Version:     version,
		BuildID:     build.Build,
		Filename:    app.Name,
		Checksum:    strings.ToLower(app.SHA256),
		Channel:     build.Channel,
		PublishedAt: build.Time,
	}
	if err := d.Validate(); err != nil {
		return BuildDescriptor{}, NewError(StageResolve, ErrUpstreamUnavailable,
			fmt.Errorf("build %d: %w", build.Build, err))
	}

	r.logger.Info("selected build", "build", d.BuildID, "file", d.Filename, "channel", d.Channel, "candidates", len(builds))
	if d.Checksum == "" {
		r.logger.Warn("build has no published checksum", "build", d.BuildID)
	}
	return d, nil
}

// Versions lists the project's versions, newest first.
func (r *Resolver) Versions(ctx context.Context) ([]string, error) {
	versions, err := r.projectVersions(ctx)
	if err != nil {
		return nil, err
	}
	return SortVersions(versions), nil
}

// projectVersions returns the versions in the order the API lists them.
func (r *Resolver) projectVersions(ctx context.Context) ([]string, error) {
	if err := r.validateSetup(); err != nil {
		return nil, err
	}
	if r.versions == nil {
		return nil, NewError(StageResolve, ErrConfiguration, errors.New("listing versions requires a version lister"))
	}

	var project *paperapi.Project
	attempts, err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		p, err := r.versions.Project(ctx, r.project)
		if err != nil {
			if paperapi.IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		project = p
		return nil
	}, r.notify("describe project"))
	if err != nil {
		if errors.Is(err, paperapi.ErrNotFound) {
			return nil, NewError(StageResolve, ErrVersionNotFound,
				fmt.Errorf("project %q: %w", r.project, err))
		}
		return nil, r.classify(err, attempts, "")
	}

	return project.Versions, nil
}

func (r *Resolver) validateSetup() error {
	if r.builds == nil {
		return NewError(StageResolve, ErrConfiguration, errors.New("no build lister configured"))
	}
	if strings.TrimSpace(r.project) == "" {
		return NewError(StageResolve, ErrConfiguration, errors.New("project is required"))
	}
	switch r.channel {
	case config.ChannelLatest, config.ChannelStable:
	default:
		return NewError(StageResolve, ErrConfiguration, fmt.Errorf("unknown channel %q", r.channel))
	}
	return nil
}

func validateVersion(version string) error {
	if version == "" {
		return NewError(StageResolve, ErrConfiguration, errors.New("version is required")).
			withHint("pass a version such as 1.21.4, or %q", LatestAlias)
	}
	for _, c := range version {
		if !isVersionRune(c) {
			return NewError(StageResolve, ErrConfiguration, fmt.Errorf("invalid version %q", version))
		}
	}
	return nil
}

func isVersionRune(c rune) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '.', c == '-', c == '_', c == '+':
		return true
	}
	return false
}

func (r *Resolver) latestVersion(ctx context.Context) (string, error) {
	if r.versions == nil {
		return "", NewError(StageResolve, ErrConfiguration,
			fmt.Errorf("%q requires a version lister", LatestAlias))
	}
	versions, err := r.projectVersions(ctx)
	if err != nil {
		return "", err
	}
	latest, ok := LatestVersion(versions)
	if !ok {
		return "", NewError(StageResolve, ErrVersionNotFound,
			fmt.Errorf("project %s lists no versions", r.project))
	}
	return latest, nil
}

// classify maps a metadata failure onto the error taxonomy.
func (r *Resolver) classify(err error, attempts int, version string) *Error {
	var statusErr *paperapi.StatusError
	var schemaErr *paperapi.SchemaError

	switch {
	case errors.Is(err, paperapi.ErrNotFound):
		return NewError(StageResolve, ErrVersionNotFound,
			fmt.Errorf("%s %s: %w", r.project, version, err)).
			withHint("run 'paperfetch versions' to list published versions")
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusBadRequest:
		return NewError(StageResolve, ErrConfiguration, err)
	case errors.As(err, &schemaErr):
		return NewError(StageResolve, ErrUpstreamUnavailable, err)
	case errors.Is(err, context.Canceled):
		return NewError(StageResolve, ErrUpstreamUnavailable, err)
	case attempts > 1:
		return NewError(StageResolve, ErrUpstreamUnavailable,
			fmt.Errorf("giving up after %d attempts: %w", attempts, err))
	default:
		return NewError(StageResolve, ErrUpstreamUnavailable, err)
	}
}

func (r *Resolver) notify(op string) retry.NotifyFunc {
	return func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("metadata request failed, retrying",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
	}
}

// SelectBuild picks the build with the highest build id, breaking ties by
// the most recent publish time. Under config.ChannelStable only builds on
// the default channel are considered unless there are none.
func SelectBuild(builds []paperapi.Build, channel string) (paperapi.Build, bool) {
	candidates := builds
	if channel == config.ChannelStable {
		var stable []paperapi.Build
		for _, b := range builds {
			if b.IsStable() {
				stable = append(stable, b)
			}
		}
		if len(stable) > 0 {
			candidates = stable
		}
	}

	var best paperapi.Build
	found := false
	for _, b := range candidates {
		if !found || b.Build > best.Build || (b.Build == best.Build && b.Time.After(best.Time)) {
			best = b
			found = true
		}
	}
	return best, found
}

// LatestVersion returns the highest stable semantic version in versions.
// Pre-releases count only when no stable version exists; names that are not
// semantic versions (snapshots) are ignored unless nothing else is listed,
// in which case the last listed name wins.
func LatestVersion(versions []string) (string, bool) {
	var stable, pre *semver.Version
	var stableRaw, preRaw string

	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if v.Prerelease() == "" {
			if stable == nil || v.GreaterThan(stable) {
				stable, stableRaw = v, raw
			}
		} else if pre == nil || v.GreaterThan(pre) {
			pre, preRaw = v, raw
		}
	}

	switch {
	case stable != nil:
		return stableRaw, true
	case pre != nil:
		return preRaw, true
	case len(versions) > 0:
		return versions[len(versions)-1], true
	default:
		return "", false
	}
}

// SortVersions orders versions newest first. Semantic versions sort by
// precedence; other names follow in reverse listing order.
func SortVersions(versions []string) []string {
	type entry struct {
		raw string
		v   *semver.Version
		idx int
	}
	entries := make([]entry, len(versions))
	for i, raw := range versions {
		v, _ := semver.NewVersion(raw)
		entries[i] = entry{raw: raw, v: v, idx: i}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.v != nil && b.v != nil:
			if a.v.Equal(b.v) {
				return a.idx > b.idx
			}
			return a.v.GreaterThan(b.v)
		case a.v != nil:
			return true
		case b.v != nil:
			return false
		default:
			return a.idx > b.idx
		}
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}
