package config

// Lua schema field names and globals
const (
	luaGlobalPaperfetch = "paperfetch"
	luaFieldProject     = "project"
	luaFieldAPIURL      = "api_url"
	luaFieldDest        = "dest"
	luaFieldArtifact    = "artifact_name"
	luaFieldChannel     = "channel"
	luaFieldUserAgent   = "user_agent"
	luaFieldRetry       = "retry"
	luaFieldRetries     = "retries"
	luaFieldInitial     = "initial_backoff"
	luaFieldMaxBackoff  = "max_backoff"
	luaFieldAttempt     = "attempt_timeout"
	luaFieldDownload    = "download_timeout"
	luaFieldVerify      = "verify"
	luaFieldKeyring     = "keyring"
	luaFieldSigSuffix   = "signature_suffix"
)

// Environment variables that override the config file
const (
	EnvAPIURL  = "PAPERFETCH_API_URL"
	EnvDest    = "PAPERFETCH_DEST"
	EnvProject = "PAPERFETCH_PROJECT"
	EnvConfig  = "PAPERFETCH_CONFIG"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "paperfetch.lua"

// maxConfigSize bounds how much Lua is read from disk.
const maxConfigSize = 1 << 20
