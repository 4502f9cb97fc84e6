package grub

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

const titleTimeLayout = "2006-01-02 15:04:05"

// Synthesizer turns snapshots into boot entries.
type Synthesizer struct {
	FS vfs.FS
	// DefaultGrub is the /etc/default/grub file the kernel arguments are taken from.
	DefaultGrub string
	RootDir     string
}

// KernelArgs returns the arguments from GRUB_CMDLINE_LINUX and GRUB_CMDLINE_LINUX_DEFAULT,
// dropping the ones each entry sets itself.
func (s Synthesizer) KernelArgs() []string {
	env, err := utils.ReadEnv(s.FS, s.DefaultGrub)
	if err != nil {
		if !os.IsNotExist(err) {
			utils.Log.Warn().Err(err).Str("file", s.DefaultGrub).Msg("reading grub defaults")
		}
		return nil
	}
	var args []string
	for _, key := range []string{"GRUB_CMDLINE_LINUX", "GRUB_CMDLINE_LINUX_DEFAULT"} {
		for _, a := range strings.Fields(env[key]) {
			if a == "ro" || a == "rw" || strings.HasPrefix(a, "root=") || strings.HasPrefix(a, "rootflags=") {
				continue
			}
			args = append(args, a)
		}
	}
	return utils.UniqueSlice(args)
}

// Title is the menu title of a snapshot.
func Title(snap schema.Snapshot) string {
	title := fmt.Sprintf("Snapshot: %s (%s)", snap.Name, snap.CreatedAt.Format(titleTimeLayout))
	if !snap.Readonly {
		title += " [writable]"
	}
	return title
}

// within returns p relative to base, or the path itself when p is outside of it.
func within(base, p string) string {
	rel, err := filepath.Rel(base, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return strings.TrimPrefix(p, "/")
	}
	return rel
}

// bootPaths translates the on-disk kernel and initrd into paths GRUB can read.
func (s Synthesizer) bootPaths(t *schema.VolumeTopology, k schema.KernelArtifact) (string, string) {
	translate := func(p string) string {
		switch t.BootMode {
		case schema.BootSeparateSubvolume:
			return "/" + path.Join(t.BootSubvolume, within(t.BootDir, p))
		case schema.BootSeparatePartition:
			return "($bootpart)/" + within(t.BootDir, p)
		default:
			root := s.RootDir
			if root == "" {
				root = "/"
			}
			return "/" + path.Join(t.RootSubvolume, within(root, p))
		}
	}
	return translate(k.KernelPath), translate(k.InitrdPath)
}

// Entries builds one entry per snapshot, newest first.
func (s Synthesizer) Entries(snaps []schema.Snapshot, t *schema.VolumeTopology, k schema.KernelArtifact, args []string) []schema.BootEntry {
	sorted := make([]schema.Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name > sorted[j].Name })

	kernel, initrd := s.bootPaths(t, k)
	entries := make([]schema.BootEntry, 0, len(sorted))
	for _, snap := range sorted {
		subvol := path.Join(t.SnapshotSubvolume, snap.Name)
		m := MenuEntry{
			Title:    Title(snap),
			RootUUID: t.RootUUID,
			Kernel:   kernel,
			Initrd:   initrd,
			Args:     args,
		}
		switch t.BootMode {
		case schema.BootSeparateSubvolume:
			m.SnapshotVar = subvol
		case schema.BootSeparatePartition:
			m.BootUUID = t.BootPartitionUUID
			m.Subvolume = subvol
		default:
			m.Subvolume = subvol
		}
		entries = append(entries, schema.BootEntry{
			Title:         m.Title,
			SnapshotName:  snap.Name,
			RenderedBlock: m.Render(),
		})
	}
	return entries
}

// Fragment is the full content of the entries file.
func Fragment(entries []schema.BootEntry) string {
	var b strings.Builder
	b.WriteString(constants.EntriesHeader())
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(e.RenderedBlock)
	}
	return b.String()
}
