package constants

import "errors"

var ErrAlreadyMounted = errors.New("already mounted")

const (
	OpScanSnapshots     = "scan-snapshots"
	OpDetectTopology    = "detect-topology"
	OpResolveKernel     = "resolve-kernel"
	OpSynthesizeEntries = "synthesize-entries"
	OpWriteEntries      = "write-entries"
	OpCompileConfig     = "compile-config"
	OpMirrorConfig      = "mirror-config"
	OpVerifyConfig      = "verify-config"
)

// StepPolicy tells the regeneration pass what to do when a step fails.
type StepPolicy int

const (
	// Fatal steps abort the whole operation.
	Fatal StepPolicy = iota
	// BestEffort steps are logged and reported as a degraded warning.
	BestEffort
)

// StepPolicies is the full table of regeneration steps and how their failures are handled.
var StepPolicies = map[string]StepPolicy{
	OpScanSnapshots:     Fatal,
	OpDetectTopology:    Fatal,
	OpResolveKernel:     BestEffort,
	OpSynthesizeEntries: Fatal,
	OpWriteEntries:      Fatal,
	OpCompileConfig:     BestEffort,
	OpMirrorConfig:      BestEffort,
	OpVerifyConfig:      BestEffort,
}

const (
	ConfigFile = "/etc/btrsnap/config.yaml"
	LockFile   = "/run/btrsnap.lock"
	LogDir     = "/var/log/btrsnap"
	LogName    = "btrsnap"

	DefaultRootDir     = "/"
	DefaultSnapshotDir = "/.snapshots"
	DefaultBootDir     = "/boot"
	DefaultEntriesFile = "/etc/grub.d/42_btrsnap"
	DefaultGrubFile    = "/etc/default/grub"
	DefaultEFIDir      = "/boot/efi/EFI"
	DefaultHooksDir    = "/etc/btrsnap/hooks.d"
	DefaultKeep        = 5

	// SnapshotPrefix starts every snapshot name.
	SnapshotPrefix = "snap-"
	// SnapshotTimeLayout is the timestamp embedded in snapshot names.
	SnapshotTimeLayout = "20060102-150405"

	// EntriesMarker is written in the entries file header and ends up in the compiled grub config.
	EntriesMarker = "### btrsnap: btrfs snapshot boot entries ###"

	// LowSpacePercent triggers a warning before taking a snapshot.
	LowSpacePercent = 95.0

	StageSnapshotBefore = "snapshot.before"
	StageSnapshotAfter  = "snapshot.after"
	StageSnapshotRemove = "snapshot.remove"
)

// EntriesHeader is the fixed header of the generated grub.d script. grub-mkconfig runs it and
// tail skips the first two lines, so everything from the marker on is copied verbatim.
func EntriesHeader() string {
	return "#!/bin/sh\nexec tail -n +3 $0\n" + EntriesMarker + "\n# Generated file, changes are overwritten on every snapshot operation.\n"
}

func DefaultGrubConfigs() []string {
	return []string{"/boot/grub/grub.cfg", "/boot/grub2/grub.cfg"}
}

// DefaultCompilers lists the grub config compilers in the order they are tried.
func DefaultCompilers() []string {
	return []string{
		"update-grub",
		"grub-mkconfig -o /boot/grub/grub.cfg",
		"grub2-mkconfig -o /boot/grub2/grub.cfg",
	}
}

func DefaultEFIVendors() []string {
	return []string{"debian", "ubuntu", "fedora", "opensuse", "centos", "rocky", "almalinux", "arch", "GRUB"}
}

// KernelCandidates returns the kernel file names to probe, in order.
func KernelCandidates(version string) []string {
	return []string{"vmlinuz-" + version, "vmlinuz", "kernel-" + version}
}

// InitrdCandidates returns the initrd file names to probe, in order.
func InitrdCandidates(version string) []string {
	return []string{"initrd.img-" + version, "initramfs-" + version + ".img", "initrd-" + version, "initramfs.img"}
}
