package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/paperapi"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/retry"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/transaction"
)

const (
	// DefaultMode grants owner and group read+execute and nothing else.
	DefaultMode fs.FileMode = 0o550

	// maxSignatureSize bounds a detached signature download
	maxSignatureSize = 64 << 10
)

// Transport locates and streams artifacts.
type Transport interface {
	DownloadURL(project, version string, build int, name string) string
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Fetcher downloads, verifies and promotes artifacts.
type Fetcher struct {
	transport    Transport
	policy       retry.Policy
	logger       config.Logger
	keyring      openpgp.EntityList
	sigSuffix    string
	artifactName string
	mode         fs.FileMode
	freeSpace    func(ctx context.Context, path string) (uint64, error)

	// beforePromote runs after verification and before the rename. Tests
	// use it to simulate a crash at the last possible moment.
	beforePromote func(stagingPath string) error
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithDownloadPolicy sets the retry policy for downloads.
func WithDownloadPolicy(p retry.Policy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l config.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithKeyring enables detached signature verification against keyring.
func WithKeyring(keyring openpgp.EntityList) FetcherOption {
	return func(f *Fetcher) {
		f.keyring = keyring
	}
}

// WithSignatureSuffix sets the suffix appended to the download URL to
// locate the detached signature.
func WithSignatureSuffix(suffix string) FetcherOption {
	return func(f *Fetcher) {
		f.sigSuffix = suffix
	}
}

// WithArtifactName promotes the artifact under a fixed file name instead of
// the upstream one.
func WithArtifactName(name string) FetcherOption {
	return func(f *Fetcher) {
		f.artifactName = name
	}
}

// WithMode sets the permission bits of the promoted artifact.
func WithMode(mode fs.FileMode) FetcherOption {
	return func(f *Fetcher) {
		f.mode = mode
	}
}

// WithFreeSpace replaces the free-space probe.
func WithFreeSpace(fn func(ctx context.Context, path string) (uint64, error)) FetcherOption {
	return func(f *Fetcher) {
		f.freeSpace = fn
	}
}

// NewFetcher creates a fetcher that downloads through t.
func NewFetcher(t Transport, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		transport: t,
		policy:    retry.DefaultPolicy().WithAttemptTimeout(config.DefaultDownloadTimeout),
		logger:    config.NopLogger(),
		sigSuffix: config.DefaultSignatureSuffix,
		mode:      DefaultMode,
		freeSpace: platform.FreeSpace,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FinalPath returns where Fetch places the artifact for d.
func (f *Fetcher) FinalPath(d BuildDescriptor, destDir string) string {
	name := f.artifactName
	if name == "" {
		name = d.Filename
	}
	return filepath.Join(destDir, name)
}

// Fetch downloads the artifact described by d into destDir and promotes it
// atomically. When an artifact with the published checksum is already in
// place the download is skipped.
func (f *Fetcher) Fetch(ctx context.Context, d BuildDescriptor, destDir string) (ArtifactFile, error) {
	if f.transport == nil {
		return ArtifactFile{}, NewError(StageFetch, ErrConfiguration, errors.New("no transport configured"))
	}
	if err := d.Validate(); err != nil {
		return ArtifactFile{}, NewError(StageFetch, ErrConfiguration, err)
	}
	if err := CheckDestination(destDir); err != nil {
		return ArtifactFile{}, err
	}

	lock, err := transaction.AcquireLock(ctx, destDir)
	if err != nil {
		switch {
		case errors.Is(err, transaction.ErrLockExists):
			return ArtifactFile{}, NewError(StageFetch, ErrDisk, err).
				withHint("another paperfetch is writing to %s; remove %s if it crashed", destDir, transaction.LockFileName)
		case ctx.Err() != nil:
			return ArtifactFile{}, NewError(StageFetch, ErrDownload, err)
		default:
			return ArtifactFile{}, NewError(StageFetch, ErrDisk, err)
		}
	}
	defer lock.Release()

	if removed, err := removeStaleStaging(destDir); err != nil {
		f.logger.Warn("could not remove stale staging files", "dir", destDir, "error", err)
	} else if len(removed) > 0 {
		f.logger.Info("removed stale staging files", "dir", destDir, "files", removed)
	}

	finalPath := f.FinalPath(d, destDir)

	if existing, ok, err := f.existing(finalPath, d); err != nil {
		return ArtifactFile{}, err
	} else if ok {
		f.logger.Info("artifact already in place", "path", finalPath, "build", d.BuildID)
		return existing, nil
	}

	url := f.transport.DownloadURL(d.Project, d.Version, d.BuildID, d.Filename)
	f.logger.Info("downloading artifact", "url", url, "dest", finalPath)
	start := time.Now()

	staged, err := f.download(ctx, url, destDir, filepath.Base(finalPath))
	if err != nil {
		return ArtifactFile{}, err
	}
	defer staged.Discard()

	result := ArtifactFile{
		Path:       finalPath,
		Descriptor: d,
		SHA256:     staged.Sum(),
		Size:       staged.size,
		Mode:       f.mode,
	}

	if err := staged.Close(); err != nil {
		return ArtifactFile{}, NewError(StageFetch, ErrDisk, err)
	}

	if d.Checksum != "" {
		if !checksumMatches(result.SHA256, d.Checksum) {
			return ArtifactFile{}, NewError(StageFetch, ErrIntegrity,
				&ChecksumMismatchError{Expected: d.Checksum, Actual: result.SHA256})
		}
		result.Verified |= VerifiedSHA256
	}

	if isArchive(d.Filename) {
		if err := verifyArchive(staged.path); err != nil {
			return ArtifactFile{}, NewError(StageFetch, ErrIntegrity, fmt.Errorf("%s is not a valid jar: %w", d.Filename, err))
		}
		result.Verified |= VerifiedArchive
	}

	if len(f.keyring) > 0 {
		if err := f.verifySignature(ctx, url, staged.path); err != nil {
			return ArtifactFile{}, err
		}
		result.Verified |= VerifiedSignature
	}

	if f.beforePromote != nil {
		if err := f.beforePromote(staged.path); err != nil {
			return ArtifactFile{}, NewError(StageFetch, ErrDisk, err)
		}
	}

	if err := staged.promote(finalPath, f.mode); err != nil {
		return ArtifactFile{}, NewError(StageFetch, ErrDisk, err)
	}

	f.logger.Info("promoted artifact",
		"path", finalPath,
		"size", result.Size,
		"sha256", result.SHA256,
		"verified", result.Verified.String(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// CheckDestination verifies that dir exists and is a directory.
func CheckDestination(dir string) error {
	if dir == "" {
		return NewError(StageFetch, ErrConfiguration, errors.New("destination directory is required"))
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewError(StageFetch, ErrConfiguration, fmt.Errorf("destination directory %s does not exist", dir)).
			withHint("create it first, e.g. mkdir -p %s", dir)
	case err != nil:
		return NewError(StageFetch, ErrDisk, err)
	case !info.IsDir():
		return NewError(StageFetch, ErrConfiguration, fmt.Errorf("destination %s is not a directory", dir))
	}
	return nil
}

// existing reports whether finalPath already holds the artifact for d.
// Only a published checksum can prove that; without one the artifact is
// always fetched again.
func (f *Fetcher) existing(finalPath string, d BuildDescriptor) (ArtifactFile, bool, error) {
	info, err := os.Lstat(finalPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ArtifactFile{}, false, nil
	}
	if err != nil {
		return ArtifactFile{}, false, NewError(StageFetch, ErrDisk, err)
	}
	if info.IsDir() {
		return ArtifactFile{}, false, NewError(StageFetch, ErrDisk, fmt.Errorf("%s is a directory", finalPath))
	}
	if !info.Mode().IsRegular() || d.Checksum == "" {
		return ArtifactFile{}, false, nil
	}

	sum, size, err := fileSHA256(finalPath)
	if err != nil {
		f.logger.Debug("cannot hash existing artifact, fetching again", "path", finalPath, "error", err)
		return ArtifactFile{}, false, nil
	}
	if !checksumMatches(sum, d.Checksum) {
		f.logger.Debug("existing artifact differs, fetching again", "path", finalPath, "sha256", sum)
		return ArtifactFile{}, false, nil
	}

	if info.Mode().Perm() != f.mode {
		if err := os.Chmod(finalPath, f.mode); err != nil {
			return ArtifactFile{}, false, NewError(StageFetch, ErrDisk, err)
		}
	}

	return ArtifactFile{
		Path:       finalPath,
		Descriptor: d,
		SHA256:     sum,
		Size:       size,
		Mode:       f.mode,
		Skipped:    true,
		Verified:   VerifiedSHA256,
	}, true, nil
}

// download streams url into a new staging file, retrying transient
// failures. Each attempt starts from an empty file.
func (f *Fetcher) download(ctx context.Context, url, destDir, finalName string) (*stagingFile, error) {
	var staged *stagingFile

	attempts, err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		body, size, err := f.transport.Open(ctx, url)
		if err != nil {
			if paperapi.IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		defer body.Close()

		if size > 0 {
			if err := f.checkSpace(ctx, destDir, uint64(size)); err != nil {
				return retry.Permanent(err)
			}
		}

		st, err := createStaging(destDir, finalName)
		if err != nil {
			return retry.Permanent(NewError(StageFetch, ErrDisk, err))
		}

		n, err := st.ReadFrom(body)
		if err != nil {
			st.Discard()
			var wErr *writeError
			if errors.As(err, &wErr) {
				return retry.Permanent(NewError(StageFetch, ErrDisk, err))
			}
			if paperapi.IsTransient(err) {
				return fmt.Errorf("read body: %w", err)
			}
			return retry.Permanent(fmt.Errorf("read body: %w", err))
		}
		if size >= 0 && n != size {
			st.Discard()
			return fmt.Errorf("short body: got %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
		}

		staged = st
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		f.logger.Warn("download failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	})
	if err != nil {
		var pErr *Error
		if errors.As(err, &pErr) {
			return nil, pErr
		}
		if attempts > 1 {
			err = fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}
		return nil, NewError(StageFetch, ErrDownload, err)
	}
	return staged, nil
}

// checkSpace fails when destDir cannot hold need more bytes. A probe
// failure is logged and ignored; the write itself will surface a full disk.
func (f *Fetcher) checkSpace(ctx context.Context, destDir string, need uint64) error {
	if f.freeSpace == nil {
		return nil
	}
	free, err := f.freeSpace(ctx, destDir)
	if err != nil {
		f.logger.Debug("free space probe failed", "dir", destDir, "error", err)
		return nil
	}
	if free < need {
		return NewError(StageFetch, ErrDisk, &InsufficientSpaceError{Dir: destDir, Required: need, Available: free})
	}
	return nil
}

// verifySignature fetches the detached signature for url and checks the
// staged file against the keyring.
func (f *Fetcher) verifySignature(ctx context.Context, url, stagedPath string) error {
	sigURL := url + f.sigSuffix
	var signature []byte

	attempts, err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		body, _, err := f.transport.Open(ctx, sigURL)
		if err != nil {
			if paperapi.IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		defer body.Close()

		data, err := io.ReadAll(io.LimitReader(body, maxSignatureSize+1))
		if err != nil {
			return err
		}
		if len(data) > maxSignatureSize {
			return retry.Permanent(fmt.Errorf("signature larger than %d bytes", maxSignatureSize))
		}
		signature = data
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		f.logger.Warn("signature download failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	})
	if err != nil {
		if attempts > 1 {
			err = fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}
		return NewError(StageFetch, ErrDownload, fmt.Errorf("signature %s: %w", sigURL, err))
	}

	if err := verifySignature(f.keyring, stagedPath, signature); err != nil {
		return NewError(StageFetch, ErrIntegrity, err)
	}
	f.logger.Debug("signature verified", "url", sigURL)
	return nil
}
