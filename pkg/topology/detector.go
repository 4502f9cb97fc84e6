package topology

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deniswernert/go-fstab"
	"github.com/gofrs/uuid"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/moby/sys/mountinfo"
	"github.com/twpayne/go-vfs/v4"
)

// Detector classifies the boot layout from the live mount table. Nothing is cached,
// every call inspects the mounts again.
type Detector struct {
	FS          vfs.FS
	Mounts      MountTable
	Console     utils.Console
	RootDir     string
	BootDir     string
	SnapshotDir string
}

func (d *Detector) rootMount() (*mountinfo.Info, []*mountinfo.Info, error) {
	mounts, err := d.Mounts.Mounts()
	if err != nil {
		return nil, nil, fmt.Errorf("reading mount table: %w", err)
	}
	root := MountAt(mounts, d.RootDir)
	if root == nil {
		return nil, nil, fmt.Errorf("no mount found for %s", d.RootDir)
	}
	return root, mounts, nil
}

// RootFSType returns the filesystem type mounted on the root directory.
func (d *Detector) RootFSType() (string, error) {
	root, _, err := d.rootMount()
	if err != nil {
		return "", err
	}
	return root.FSType, nil
}

// SubvolumeOf returns the btrfs subvolume of a mount, without leading slash.
func SubvolumeOf(m *mountinfo.Info) string {
	if s, ok := utils.SubvolOption(m.VFSOptions); ok {
		return s
	}
	if s, ok := utils.SubvolOption(m.Options); ok {
		return s
	}
	return strings.Trim(m.Root, "/")
}

func hasSubvolOption(m *mountinfo.Info) bool {
	_, inVFS := utils.SubvolOption(m.VFSOptions)
	_, inOpts := utils.SubvolOption(m.Options)
	return inVFS || inOpts
}

// Detect inspects the mounts and returns the current topology.
func (d *Detector) Detect() (*schema.VolumeTopology, error) {
	root, mounts, err := d.rootMount()
	if err != nil {
		return nil, err
	}
	if root.FSType != "btrfs" {
		return nil, &schema.UnsupportedVolumeError{FSType: root.FSType}
	}

	t := &schema.VolumeTopology{
		RootDevice:    root.Source,
		RootSubvolume: SubvolumeOf(root),
		RootFSType:    root.FSType,
		BootDir:       d.BootDir,
		BootMode:      schema.BootEmbedded,
	}

	t.RootUUID, err = d.blkidUUID(root.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving root filesystem UUID: %w", err)
	}

	if boot := MountAt(mounts, d.BootDir); boot != nil {
		if boot.FSType == "btrfs" && boot.Source == root.Source && hasSubvolOption(boot) {
			t.BootMode = schema.BootSeparateSubvolume
			t.BootSubvolume = SubvolumeOf(boot)
		} else {
			t.BootMode = schema.BootSeparatePartition
			// the mounted device wins, fstab may be stale
			t.BootPartitionUUID, err = d.blkidUUID(boot.Source)
			if err != nil {
				if t.BootPartitionUUID = d.fstabUUID(d.BootDir); t.BootPartitionUUID == "" {
					return nil, fmt.Errorf("resolving boot partition UUID: %w", err)
				}
				utils.Log.Debug().Err(err).Str("device", boot.Source).Msg("blkid failed, using the fstab UUID for the boot partition")
			}
		}
	}

	t.SnapshotSubvolume = d.snapshotSubvolume(root, mounts)

	utils.Log.Debug().Str("mode", string(t.BootMode)).Str("root", t.RootDevice).Str("subvol", t.RootSubvolume).
		Str("snapshots", t.SnapshotSubvolume).Msg("Detected volume topology")
	return t, nil
}

func (d *Detector) snapshotSubvolume(root *mountinfo.Info, mounts []*mountinfo.Info) string {
	if m := MountAt(mounts, d.SnapshotDir); m != nil && m.FSType == "btrfs" && m.Source == root.Source && hasSubvolOption(m) {
		return SubvolumeOf(m)
	}
	rel, err := filepath.Rel(d.RootDir, d.SnapshotDir)
	if err != nil {
		rel = strings.TrimPrefix(d.SnapshotDir, "/")
	}
	if sub := SubvolumeOf(root); sub != "" {
		return sub + "/" + rel
	}
	return rel
}

// fstabUUID looks for a UUID= spec mounted on target in the root's fstab.
func (d *Detector) fstabUUID(target string) string {
	f, err := d.FS.Open(filepath.Join(d.RootDir, "etc/fstab"))
	if err != nil {
		return ""
	}
	defer f.Close()

	entries, err := fstab.Parse(f)
	if err != nil {
		utils.Log.Debug().Err(err).Msg("parsing fstab")
		return ""
	}
	for _, e := range entries {
		if filepath.Clean(e.File) == filepath.Clean(target) {
			if id := utils.SpecUUID(e.Spec); id != "" {
				return id
			}
		}
	}
	return ""
}

func (d *Detector) blkidUUID(device string) (string, error) {
	out, err := d.Console.Run(fmt.Sprintf("blkid -s UUID -o value %s", utils.ShellQuote(device)))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if _, err := uuid.FromString(out); err != nil {
		return "", fmt.Errorf("invalid UUID %q for %s: %w", out, device, err)
	}
	return out, nil
}
