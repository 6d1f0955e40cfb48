package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// BuildDescriptor identifies one immutable build artifact. It is produced by
// Resolver and consumed by value.
type BuildDescriptor struct {
	Project  string
	Version  string
	BuildID  int
	Filename string
	// Checksum is the hex SHA-256 published by the API; empty when unknown
	Checksum    string
	Channel     string
	PublishedAt time.Time
}

// Validate reports whether d names a fetchable artifact.
func (d BuildDescriptor) Validate() error {
	switch {
	case d.Project == "":
		return errors.New("descriptor has no project")
	case d.Version == "":
		return errors.New("descriptor has no version")
	case d.BuildID <= 0:
		return fmt.Errorf("descriptor has invalid build id %d", d.BuildID)
	case d.Filename == "":
		return errors.New("descriptor has no artifact filename")
	}
	if d.Filename != filepath.Base(d.Filename) || strings.HasPrefix(d.Filename, ".") {
		return fmt.Errorf("artifact filename %q is not a plain file name", d.Filename)
	}
	if d.Checksum != "" && !isHex(d.Checksum) {
		return fmt.Errorf("checksum %q is not hexadecimal", d.Checksum)
	}
	return nil
}

func (d BuildDescriptor) String() string {
	return fmt.Sprintf("%s %s build %d (%s)", d.Project, d.Version, d.BuildID, d.Filename)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Verification records which checks a staged artifact passed.
type Verification uint8

const (
	VerifiedSHA256 Verification = 1 << iota
	VerifiedArchive
	VerifiedSignature
)

// Has reports whether every check in o is set in v.
func (v Verification) Has(o Verification) bool {
	return v&o == o
}

// String returns the string representation of the verification set
func (v Verification) String() string {
	if v == 0 {
		return "none"
	}
	var parts []string
	if v.Has(VerifiedSHA256) {
		parts = append(parts, "sha256")
	}
	if v.Has(VerifiedArchive) {
		parts = append(parts, "archive")
	}
	if v.Has(VerifiedSignature) {
		parts = append(parts, "signature")
	}
	return strings.Join(parts, "+")
}

// ArtifactFile is a promoted artifact at its final path.
type ArtifactFile struct {
	Path       string
	Descriptor BuildDescriptor
	SHA256     string
	Size       int64
	Mode       fs.FileMode
	// Skipped is true when an identical artifact was already in place
	Skipped  bool
	Verified Verification
}
