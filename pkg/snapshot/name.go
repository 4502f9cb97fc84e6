package snapshot

import (
	"regexp"
	"time"

	"github.com/kairos-io/btrsnap/internal/constants"
)

var (
	invalidLabelChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	// NamePattern matches every name NewName can produce.
	NamePattern = regexp.MustCompile(`^` + constants.SnapshotPrefix + `(\d{8}-\d{6})(?:-([A-Za-z0-9_-]+))?$`)
)

// SanitizeLabel replaces every character outside [A-Za-z0-9_-] with an underscore.
func SanitizeLabel(label string) string {
	return invalidLabelChars.ReplaceAllString(label, "_")
}

// NewName builds snap-YYYYMMDD-HHMMSS[-label].
func NewName(now time.Time, label string) string {
	name := constants.SnapshotPrefix + now.Format(constants.SnapshotTimeLayout)
	if l := SanitizeLabel(label); l != "" {
		name += "-" + l
	}
	return name
}

// ParseName returns the creation time and label embedded in a snapshot name.
func ParseName(name string) (time.Time, string, bool) {
	m := NamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, "", false
	}
	t, err := time.ParseInLocation(constants.SnapshotTimeLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, m[2], true
}
