package platform

import (
	"fmt"
	"strings"
)

// UserAgent decorates base with the detected platform, e.g.
// "paperfetch/1.0 (linux; amd64; debian 12)". A nil info returns base.
func UserAgent(base string, info *Info) string {
	if info == nil {
		return base
	}
	parts := []string{info.OS, info.Arch}
	if d := info.GetDistro(); d != nil {
		parts = append(parts, strings.TrimSpace(d.ID+" "+d.Version))
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(parts, "; "))
}
