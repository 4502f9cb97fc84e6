package utils

import (
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
)

// SpecUUID returns the UUID of an fstab spec like UUID=1234, or an empty string.
func SpecUUID(spec string) string {
	if strings.HasPrefix(spec, "UUID=") {
		return strings.Trim(strings.TrimPrefix(spec, "UUID="), `"`)
	}
	return ""
}

// SubvolOption extracts the subvolume from btrfs mount options, without the leading slash.
// input: rw,relatime,subvolid=256,subvol=/@
// output: @
func SubvolOption(options string) (string, bool) {
	for _, o := range strings.Split(options, ",") {
		if strings.HasPrefix(o, "subvol=") {
			return strings.Trim(strings.TrimPrefix(o, "subvol="), "/"), true
		}
	}
	return "", false
}

// MountToFstab converts a mount into an fstab entry, the target is left for the caller.
func MountToFstab(m mount.Mount) *fstab.Mount {
	opts := map[string]string{}
	for _, o := range m.Options {
		if strings.Contains(o, "=") {
			dat := strings.SplitN(o, "=", 2)
			opts[dat[0]] = dat[1]
		} else {
			opts[o] = ""
		}
	}
	return &fstab.Mount{
		Spec:    m.Source,
		VfsType: m.Type,
		MntOps:  opts,
		Freq:    0,
		PassNo:  0,
	}
}
