// Package config loads paperfetch settings from a sandboxed Lua file,
// the environment, and built-in defaults.
//
// # Overview
//
// A config file defines a global "paperfetch" table:
//
//	paperfetch = {
//	    project = "paper",
//	    api_url = "https://api.papermc.io",
//	    dest = platform.is_linux and "/opt/paper" or "./paper",
//	    artifact_name = "paper.jar",
//	    channel = "stable",
//	    retry = { retries = 5, initial_backoff = "2s", download_timeout = "10m" },
//	    verify = { keyring = "/etc/paperfetch/keys.asc" },
//	}
//
// Every field is optional; unset fields keep their defaults.
//
// # Precedence
//
// Defaults, then the config file, then PAPERFETCH_* environment variables.
// Command-line flags are applied last by the caller.
//
// # Sandbox
//
// The file runs in a gopher-lua VM without the os, io and debug libraries
// and without require/dofile/loadfile/load/loadstring. A read-only
// "platform" table describing the host is injected before the file runs,
// so a single config can serve both a build container and a workstation:
//
//	dest = platform.pick{ alpine = "/opt/paper", darwin = "./paper", default = "/srv/paper" }
//
// # Durations
//
// Duration fields accept Go duration strings ("1500ms", "2m") or a number
// of seconds.
package config
