package platform

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// FreeSpace reports the bytes available to unprivileged writers on the
// filesystem holding path.
func FreeSpace(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}
