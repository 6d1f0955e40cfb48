// Package artifact resolves a server version to a concrete build and stages
// that build's artifact atomically on disk.
//
// # Pipeline
//
// Resolution and retrieval run strictly in sequence:
//   - Resolver: queries the build-metadata API and selects the build with
//     the highest build id (ties go to the newest publish time)
//   - Fetcher: downloads the selected build into a staging file, verifies
//     it, and renames it onto the final path
//
// Pipeline composes the two and aborts on the first failure.
//
// # Verification
//
// A staged artifact must pass every applicable check before promotion:
//   - SHA-256 against the checksum published by the API, when present
//   - zip structure, for .jar artifacts
//   - detached OpenPGP signature, when a keyring is configured
//
// # Atomicity
//
// The staging file lives in the destination directory, so promotion is a
// single rename on the same filesystem. A crash or cancellation before the
// rename leaves only a hidden ".partial" file, which the next run removes.
// The final path never holds a partially written artifact.
//
// # Errors
//
// Every failure is an *Error carrying the failing stage and one of the
// sentinel kinds (ErrConfiguration, ErrVersionNotFound,
// ErrUpstreamUnavailable, ErrDownload, ErrIntegrity, ErrDisk). Use
// errors.Is to test the kind; the underlying cause stays reachable through
// errors.As.
package artifact
