package grub

import (
	"fmt"
	"strings"
)

// MenuEntry is one GRUB menuentry. All entries go through Render so the output
// format lives in a single place.
type MenuEntry struct {
	Title    string
	RootUUID string
	// BootUUID adds a search for the boot partition into $bootpart.
	BootUUID string
	// SnapshotVar is set into ${snapshot_subvol} and referenced from rootflags.
	SnapshotVar string
	// Subvolume is the rootflags subvolume, used when SnapshotVar is empty.
	Subvolume string
	Kernel    string
	Initrd    string
	Args      []string
}

func quoteTitle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (m MenuEntry) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "menuentry %s --class btrfs --class gnu-linux {\n", quoteTitle(m.Title))
	b.WriteString("\tinsmod btrfs\n")
	fmt.Fprintf(&b, "\tsearch --no-floppy --fs-uuid --set=root %s\n", m.RootUUID)
	if m.BootUUID != "" {
		fmt.Fprintf(&b, "\tsearch --no-floppy --fs-uuid --set=bootpart %s\n", m.BootUUID)
	}

	subvol := m.Subvolume
	if m.SnapshotVar != "" {
		fmt.Fprintf(&b, "\tset snapshot_subvol=%s\n", m.SnapshotVar)
		subvol = "${snapshot_subvol}"
	}

	linux := []string{"linux", m.Kernel, "root=UUID=" + m.RootUUID, "rootflags=subvol=" + subvol + ",ro", "ro"}
	linux = append(linux, m.Args...)
	fmt.Fprintf(&b, "\t%s\n", strings.Join(linux, " "))
	fmt.Fprintf(&b, "\tinitrd %s\n", m.Initrd)
	b.WriteString("}\n")
	return b.String()
}
