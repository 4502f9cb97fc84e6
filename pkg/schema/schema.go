package schema

import "time"

type BootMode string

const (
	// BootEmbedded means kernel and initrd live under the root subvolume's own /boot.
	BootEmbedded BootMode = "embedded"
	// BootSeparateSubvolume means /boot is another subvolume of the root btrfs volume.
	BootSeparateSubvolume BootMode = "separate_subvolume"
	// BootSeparatePartition means /boot is a different filesystem altogether.
	BootSeparatePartition BootMode = "separate_partition"
)

type Snapshot struct {
	Name            string    `json:"name" yaml:"name"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	Label           string    `json:"label,omitempty" yaml:"label,omitempty"`
	Readonly        bool      `json:"readonly" yaml:"readonly"`
	SourceSubvolume string    `json:"source_subvolume,omitempty" yaml:"source_subvolume,omitempty"`
}

// VolumeTopology describes where the boot artifacts live relative to the root volume.
// It is detected fresh for every regeneration.
type VolumeTopology struct {
	RootDevice    string // e.g. /dev/sda3
	RootSubvolume string // e.g. @, empty when root is the top level subvolume
	RootUUID      string
	RootFSType    string
	BootMode      BootMode
	BootDir       string // e.g. /boot

	BootSubvolume     string // only for separate_subvolume, e.g. @boot
	BootPartitionUUID string // only for separate_partition

	// SnapshotSubvolume is the snapshot holder path relative to the volume top level
	// e.g. @/.snapshots or @snapshots
	SnapshotSubvolume string
}

type KernelArtifact struct {
	KernelPath    string
	InitrdPath    string
	KernelVersion string
	// Verified is false when at least one path is a guess that was not found on disk.
	Verified bool
}

type BootEntry struct {
	Title         string
	SnapshotName  string
	RenderedBlock string
}

// Warning is a degraded, non fatal outcome of a step.
type Warning struct {
	Step    string
	Message string
	Remedy  string
}

func (w Warning) String() string {
	if w.Remedy == "" {
		return w.Message
	}
	return w.Message + " (" + w.Remedy + ")"
}

// Error lets a step return a warning where an error is expected.
func (w Warning) Error() string {
	return w.String()
}
