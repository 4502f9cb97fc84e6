package schema

import (
	"github.com/kairos-io/btrsnap/internal/constants"
)

// Config is read from /etc/btrsnap/config.yaml. Every key is optional.
type Config struct {
	RootDir     string `yaml:"root_dir"`
	SnapshotDir string `yaml:"snapshot_dir"`
	// SnapshotSubvolume is a top level subvolume (e.g. @snapshots) to mount on SnapshotDir
	// when it is not mounted yet. Empty means SnapshotDir is a nested subvolume of root.
	SnapshotSubvolume string   `yaml:"snapshot_subvolume"`
	BootDir           string   `yaml:"boot_dir"`
	EntriesFile       string   `yaml:"entries_file"`
	GrubConfigs       []string `yaml:"grub_configs"`
	Compilers         []string `yaml:"compilers"`
	EFIDir            string   `yaml:"efi_dir"`
	EFIVendors        []string `yaml:"efi_vendors"`
	DefaultGrub       string   `yaml:"default_grub"`
	HooksDir          string   `yaml:"hooks_dir"`
	Keep              int      `yaml:"keep"`
	KernelVersion     string   `yaml:"kernel_version"`
	LockFile          string   `yaml:"lock_file"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		RootDir:     constants.DefaultRootDir,
		SnapshotDir: constants.DefaultSnapshotDir,
		BootDir:     constants.DefaultBootDir,
		EntriesFile: constants.DefaultEntriesFile,
		GrubConfigs: constants.DefaultGrubConfigs(),
		Compilers:   constants.DefaultCompilers(),
		EFIDir:      constants.DefaultEFIDir,
		EFIVendors:  constants.DefaultEFIVendors(),
		DefaultGrub: constants.DefaultGrubFile,
		HooksDir:    constants.DefaultHooksDir,
		Keep:        constants.DefaultKeep,
		LockFile:    constants.LockFile,
	}
}

// Merge fills every empty path and list of c from defaults. Keep is left alone, 0 is a valid value.
func (c Config) Merge(defaults Config) Config {
	if c.RootDir == "" {
		c.RootDir = defaults.RootDir
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = defaults.SnapshotDir
	}
	if c.BootDir == "" {
		c.BootDir = defaults.BootDir
	}
	if c.EntriesFile == "" {
		c.EntriesFile = defaults.EntriesFile
	}
	if len(c.GrubConfigs) == 0 {
		c.GrubConfigs = defaults.GrubConfigs
	}
	if len(c.Compilers) == 0 {
		c.Compilers = defaults.Compilers
	}
	if c.EFIDir == "" {
		c.EFIDir = defaults.EFIDir
	}
	if len(c.EFIVendors) == 0 {
		c.EFIVendors = defaults.EFIVendors
	}
	if c.DefaultGrub == "" {
		c.DefaultGrub = defaults.DefaultGrub
	}
	if c.HooksDir == "" {
		c.HooksDir = defaults.HooksDir
	}
	if c.LockFile == "" {
		c.LockFile = defaults.LockFile
	}
	return c
}
