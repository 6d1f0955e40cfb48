package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/paperapi"
	"github.com/ZebulonRouseFrantzich/paperfetch/internal/retry"
)

// Channel policies for build selection
const (
	// ChannelLatest selects the highest build regardless of channel
	ChannelLatest = "latest"
	// ChannelStable prefers builds on the default channel
	ChannelStable = "stable"
)

// Defaults for a Paper server image
const (
	DefaultProject         = "paper"
	DefaultDest            = "/opt/paper"
	DefaultArtifactName    = "paper.jar"
	DefaultSignatureSuffix = ".asc"
	DefaultDownloadTimeout = 5 * time.Minute
)

// Config represents the complete paperfetch configuration.
type Config struct {
	// Project is the API project to resolve builds for
	Project string

	// APIURL is the root of the metadata and download API
	APIURL string

	// Dest is the directory the artifact is staged into
	Dest string

	// ArtifactName is the fixed file name of the artifact inside Dest.
	// Empty means "use the upstream file name".
	ArtifactName string

	// Channel is the build selection policy (latest or stable)
	Channel string

	// UserAgent is sent with every request
	UserAgent string

	// Retry governs metadata queries and downloads
	Retry RetryConfig

	// Verify configures optional signature verification
	Verify VerifyConfig
}

// RetryConfig holds the retry budget for network calls.
type RetryConfig struct {
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds one metadata request
	AttemptTimeout time.Duration
	// DownloadTimeout bounds one artifact download attempt
	DownloadTimeout time.Duration
}

// VerifyConfig enables detached OpenPGP signature checks.
type VerifyConfig struct {
	// Keyring is a path to an armored or binary public keyring; empty disables
	Keyring string
	// SignatureSuffix is appended to the download URL to locate the signature
	SignatureSuffix string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Project:      DefaultProject,
		APIURL:       paperapi.DefaultBaseURL,
		Dest:         DefaultDest,
		ArtifactName: DefaultArtifactName,
		Channel:      ChannelLatest,
		UserAgent:    paperapi.DefaultUserAgent,
		Retry: RetryConfig{
			Retries:         retry.DefaultRetries,
			InitialBackoff:  retry.DefaultInitialBackoff,
			MaxBackoff:      retry.DefaultMaxBackoff,
			AttemptTimeout:  retry.DefaultAttemptTimeout,
			DownloadTimeout: DefaultDownloadTimeout,
		},
		Verify: VerifyConfig{
			SignatureSuffix: DefaultSignatureSuffix,
		},
	}
}

// ArtifactPath returns the fixed path the artifact is promoted to, or ""
// when the name follows the upstream file name.
func (c *Config) ArtifactPath() string {
	if c.ArtifactName == "" {
		return ""
	}
	return filepath.Join(c.Dest, c.ArtifactName)
}

// MetadataPolicy is the retry policy for metadata queries.
func (c *Config) MetadataPolicy() retry.Policy {
	return retry.Policy{
		Retries:        c.Retry.Retries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     retry.DefaultMultiplier,
		AttemptTimeout: c.Retry.AttemptTimeout,
	}
}

// DownloadPolicy is the retry policy for artifact downloads.
func (c *Config) DownloadPolicy() retry.Policy {
	return c.MetadataPolicy().WithAttemptTimeout(c.Retry.DownloadTimeout)
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Project) == "" {
		return &ValidationError{Field: luaFieldProject, Message: "cannot be empty"}
	}
	if strings.ContainsAny(c.Project, "/\\") {
		return &ValidationError{Field: luaFieldProject, Message: fmt.Sprintf("invalid project name %q", c.Project)}
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: luaFieldAPIURL, Message: fmt.Sprintf("must be an http(s) URL, got %q", c.APIURL)}
	}

	if c.Dest == "" {
		return &ValidationError{Field: luaFieldDest, Message: "cannot be empty"}
	}

	if c.ArtifactName != "" {
		if c.ArtifactName != filepath.Base(c.ArtifactName) || c.ArtifactName == "." || c.ArtifactName == ".." {
			return &ValidationError{Field: luaFieldArtifact, Message: fmt.Sprintf("must be a plain file name, got %q", c.ArtifactName)}
		}
		if strings.HasPrefix(c.ArtifactName, ".") {
			return &ValidationError{Field: luaFieldArtifact, Message: "hidden file names are reserved for staging"}
		}
	}

	switch c.Channel {
	case ChannelLatest, ChannelStable:
	default:
		return &ValidationError{Field: luaFieldChannel, Message: fmt.Sprintf("must be %q or %q, got %q", ChannelLatest, ChannelStable, c.Channel)}
	}

	if err := c.MetadataPolicy().Validate(); err != nil {
		return &ValidationError{Field: luaFieldRetry, Message: err.Error()}
	}
	if c.Retry.DownloadTimeout < 0 {
		return &ValidationError{Field: luaFieldRetry + "." + luaFieldDownload, Message: "must be >= 0"}
	}

	if c.Verify.Keyring != "" && c.Verify.SignatureSuffix == "" {
		return &ValidationError{Field: luaFieldVerify + "." + luaFieldSigSuffix, Message: "required when a keyring is set"}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}
