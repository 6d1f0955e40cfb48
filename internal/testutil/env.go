// Package testutil provides utilities for testing paperfetch in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env describes the isolated directories created by SetupTestEnv.
type Env struct {
	// Root is the working directory for the test
	Root string
	// Dest is an empty, writable destination directory inside Root
	Dest string
}

// SetupTestEnv isolates a test from the caller's environment:
//   - PAPERFETCH_* variables are blanked so a developer's shell cannot
//     redirect tests at a real API or install directory
//   - the working directory moves to a fresh temp dir, so no stray
//     paperfetch.lua is picked up
//
// Cleanup is handled by t.TempDir, t.Setenv and t.Chdir. Tests calling this
// cannot run in parallel.
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	root := t.TempDir()

	for _, name := range []string{
		"PAPERFETCH_API_URL",
		"PAPERFETCH_DEST",
		"PAPERFETCH_PROJECT",
		"PAPERFETCH_CONFIG",
	} {
		t.Setenv(name, "")
	}

	dest := filepath.Join(root, "dest")
	if err := os.MkdirAll(dest, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", dest, err)
	}

	t.Chdir(root)

	return Env{Root: root, Dest: dest}
}
