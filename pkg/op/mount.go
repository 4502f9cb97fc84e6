package op

import (
	"errors"
	"fmt"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/twpayne/go-vfs/v4"
)

// SubvolumeMount builds the operation mounting subvol of a btrfs device on where.
func SubvolumeMount(device, subvol, where string) MountOperation {
	mountPoint := mount.Mount{
		Type:    "btrfs",
		Source:  device,
		Options: []string{"rw", "noatime", "subvol=" + subvol},
	}
	entry := utils.MountToFstab(mountPoint)
	entry.File = where
	return MountOperation{
		MountOption: mountPoint,
		FstabEntry:  *entry,
		Target:      where,
	}
}

// MountSubvolume mounts subvol of a btrfs device on where, creating the mount point.
// It returns the fstab entry matching the mount, also when it was already mounted.
func MountSubvolume(fs vfs.FS, device, subvol, where string) (*fstab.Mount, error) {
	l := utils.Log.With().Str("what", device).Str("where", where).Str("subvol", subvol).Logger()

	raw, err := fs.RawPath(where)
	if err != nil {
		return nil, err
	}

	op := SubvolumeMount(device, subvol, raw)
	op.FstabEntry.File = where
	op.PrepareCallback = func() error {
		if err := utils.CreateIfNotExists(fs, where); err != nil {
			l.Err(err).Msg("Creating dir")
			return err
		}
		return nil
	}
	err = op.Run()
	if err != nil && !errors.Is(err, constants.ErrAlreadyMounted) {
		l.Warn().Err(err).Send()
		return nil, fmt.Errorf("mounting %s on %s: %w", subvol, where, err)
	}
	l.Info().Msg("mount done")
	return &op.FstabEntry, nil
}

// SubvolumeMounter mounts subvolumes on the real system.
type SubvolumeMounter struct {
	FS vfs.FS
}

func (m SubvolumeMounter) MountSubvolume(device, subvol, where string) (*fstab.Mount, error) {
	return MountSubvolume(m.FS, device, subvol, where)
}
