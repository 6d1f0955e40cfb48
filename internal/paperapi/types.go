package paperapi

import "time"

// ChannelDefault is the channel the API assigns to builds it considers stable.
const ChannelDefault = "default"

// applicationDownload is the download key carrying the server jar.
const applicationDownload = "application"

// Project is the response of GET /v2/projects/{project}.
type Project struct {
	ID            string   `json:"project_id"`
	Name          string   `json:"project_name"`
	VersionGroups []string `json:"version_groups"`
	Versions      []string `json:"versions"`
}

// BuildsResponse is the response of GET /v2/projects/{project}/versions/{version}/builds.
type BuildsResponse struct {
	ProjectID   string  `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Version     string  `json:"version"`
	Builds      []Build `json:"builds"`
}

// Build describes one published build of a version.
type Build struct {
	Build     int                 `json:"build"`
	Time      time.Time           `json:"time"`
	Channel   string              `json:"channel"`
	Promoted  bool                `json:"promoted"`
	Changes   []Change            `json:"changes,omitempty"`
	Downloads map[string]Download `json:"downloads"`
}

// Change is a commit included in a build.
type Change struct {
	Commit  string `json:"commit"`
	Summary string `json:"summary"`
	Message string `json:"message"`
}

// Download names a downloadable file of a build.
type Download struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// Application returns the server jar download of the build.
func (b Build) Application() (Download, bool) {
	d, ok := b.Downloads[applicationDownload]
	if !ok || d.Name == "" {
		return Download{}, false
	}
	return d, true
}

// IsStable reports whether the build was published on the default channel.
func (b Build) IsStable() bool {
	return b.Channel == "" || b.Channel == ChannelDefault
}
