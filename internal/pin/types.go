// Package pin reads and writes pin files: YAML records of a resolved build
// that let a later fetch run without consulting the metadata API.
package pin

import (
	"time"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/artifact"
)

// FormatVersion is the only pin file format understood.
const FormatVersion = 1

// File represents a pin file.
type File struct {
	Version int   `yaml:"version"`
	Build   Build `yaml:"build"`
}

// Build records one resolved build.
type Build struct {
	Project     string    `yaml:"project"`
	Version     string    `yaml:"version"`
	ID          int       `yaml:"build"`
	Filename    string    `yaml:"file"`
	SHA256      string    `yaml:"sha256,omitempty"`
	Channel     string    `yaml:"channel,omitempty"`
	PublishedAt time.Time `yaml:"published_at,omitempty"`
}

// FromDescriptor pins d.
func FromDescriptor(d artifact.BuildDescriptor) *File {
	return &File{
		Version: FormatVersion,
		Build: Build{
			Project:     d.Project,
			Version:     d.Version,
			ID:          d.BuildID,
			Filename:    d.Filename,
			SHA256:      d.Checksum,
			Channel:     d.Channel,
			PublishedAt: d.PublishedAt.UTC(),
		},
	}
}

// Descriptor returns the pinned build as a descriptor.
func (f *File) Descriptor() artifact.BuildDescriptor {
	return artifact.BuildDescriptor{
		Project:     f.Build.Project,
		Version:     f.Build.Version,
		BuildID:     f.Build.ID,
		Filename:    f.Build.Filename,
		Checksum:    f.Build.SHA256,
		Channel:     f.Build.Channel,
		PublishedAt: f.Build.PublishedAt,
	}
}
