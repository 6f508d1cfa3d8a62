package semver

import (
	"strconv"
	"strings"
)

// GetNumericVersion collapses a dotted version string into a single sortable
// integer (each segment gets three decimal digits). Non-numeric segments
// count as zero.
func GetNumericVersion(semVer string) int {
	parts := strings.Split(strings.TrimPrefix(semVer, "v"), ".")
	result := 0
	for _, part := range parts {
		num, _ := strconv.Atoi(part)
		result = result*1000 + num
	}
	return result
}

// Compare returns -1, 0 or 1 when a is respectively older than, equal to or
// newer than b.
func Compare(a, b string) int {
	na, nb := GetNumericVersion(a), GetNumericVersion(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}
