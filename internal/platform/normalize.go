package platform

import "strings"

// familyOf maps distribution IDs and ID_LIKE values to a family.
var familyOf = map[string]string{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"linuxmint": FamilyDebian,
	"raspbian":  FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"ol":        FamilyRHEL,
	"amazon":    FamilyRHEL,
	"fedora":    FamilyFedora,
	"alpine":    FamilyAlpine,
}

// archAliases folds uname names onto GOARCH names.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"x64":     "amd64",
	"aarch64": "arm64",
	"armv8":   "arm64",
	"armv7l":  "arm",
	"i386":    "386",
	"i686":    "386",
}

// normalizeArch maps arch to its GOARCH name. Unknown names pass through
// lowercased: a jar runs anywhere a JVM does, so nothing is rejected.
func normalizeArch(arch string) string {
	a := normalizePlatform(arch)
	if alias, ok := archAliases[a]; ok {
		return alias
	}
	return a
}

func normalizePlatform(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily returns the family for a gopsutil family or platform string.
func mapFamily(family string) string {
	if f, ok := familyOf[normalizePlatform(family)]; ok {
		return f
	}
	return FamilyUnknown
}
