package topology

import (
	"path/filepath"

	"github.com/moby/sys/mountinfo"
)

// MountTable gives access to the live mount table.
type MountTable interface {
	Mounts() ([]*mountinfo.Info, error)
}

// SystemMounts reads /proc/self/mountinfo.
type SystemMounts struct{}

func (SystemMounts) Mounts() ([]*mountinfo.Info, error) {
	return mountinfo.GetMounts(nil)
}

// MountAt returns the mount sitting on path, or nil. When several mounts stack
// on the same point the last one is visible.
func MountAt(mounts []*mountinfo.Info, path string) *mountinfo.Info {
	path = filepath.Clean(path)
	var found *mountinfo.Info
	for _, m := range mounts {
		if filepath.Clean(m.Mountpoint) == path {
			found = m
		}
	}
	return found
}

// IsMountpoint reports whether path is a mount point.
func IsMountpoint(mounts []*mountinfo.Info, path string) bool {
	return MountAt(mounts, path) != nil
}
