package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// platformInformation reads /etc/os-release and friends. Replaced in tests.
var platformInformation = host.PlatformInformationWithContext

// RealDetector implements Detector for the running host.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect reports the running OS and architecture and, on Linux, the
// distribution. A distro that cannot be read leaves those fields empty; only
// a cancelled context fails.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:   runtime.GOOS,
		Arch: normalizeArch(runtime.GOARCH),
	}
	if info.OS != "linux" {
		return info, nil
	}

	if err := detectDistro(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func detectDistro(ctx context.Context, info *Info) error {
	id, family, version, err := platformInformation(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return nil
	}

	id = normalizePlatform(id)
	if id == "" {
		return nil
	}
	info.Platform = id
	// Some distros report an empty family; the ID itself often is one.
	if info.Family = mapFamily(family); info.Family == FamilyUnknown {
		info.Family = mapFamily(id)
	}
	info.Version = normalizePlatform(version)
	return nil
}
