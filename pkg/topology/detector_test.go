package topology_test

import (
	"errors"
	"strings"

	"github.com/kairos-io/btrsnap/internal/mocks"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/kairos-io/btrsnap/pkg/topology"
	"github.com/moby/sys/mountinfo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

const (
	rootUUID = "0b4b7a34-1f4c-4e39-9c55-2f0d0b3c6a11"
	bootUUID = "5d3c2a10-8e1b-4f0e-a2d4-91c7e6b0f7aa"
)

var _ = Describe("BootTopologyDetector", func() {
	var fs vfs.FS
	var cleanup func()
	var console *mocks.FakeConsole
	var mounts *mocks.FakeMounts
	var detector *topology.Detector

	BeforeEach(func() {
		var err error
		fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
			"/etc/fstab": "UUID=" + rootUUID + " / btrfs subvol=/@ 0 0\nUUID=" + bootUUID + " /boot ext4 defaults 0 2\n",
		})
		Expect(err).ToNot(HaveOccurred())
		console = mocks.NewFakeConsole()
		console.On("blkid -s UUID -o value '/dev/sda3'", func(string) (string, error) { return rootUUID + "\n", nil })
		console.On("blkid -s UUID -o value '/dev/sda2'", func(string) (string, error) { return bootUUID + "\n", nil })
		mounts = &mocks.FakeMounts{}
		detector = &topology.Detector{
			FS:          fs,
			Mounts:      mounts,
			Console:     console,
			RootDir:     "/",
			BootDir:     "/boot",
			SnapshotDir: "/.snapshots",
		}
	})
	AfterEach(func() {
		cleanup()
	})

	It("classifies embedded when /boot is not a mount point", func() {
		mounts.Infos = []*mountinfo.Info{mocks.BtrfsMount("/dev/sda3", "/", "@")}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.BootMode).To(Equal(schema.BootEmbedded))
		Expect(t.RootUUID).To(Equal(rootUUID))
		Expect(t.RootSubvolume).To(Equal("@"))
		Expect(t.RootDevice).To(Equal("/dev/sda3"))
		Expect(t.SnapshotSubvolume).To(Equal("@/.snapshots"))
	})

	It("classifies separate_subvolume for a btrfs /boot on the root device", func() {
		mounts.Infos = []*mountinfo.Info{
			mocks.BtrfsMount("/dev/sda3", "/", "@"),
			mocks.BtrfsMount("/dev/sda3", "/boot", "@boot"),
			mocks.BtrfsMount("/dev/sda3", "/.snapshots", "@snapshots"),
		}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.BootMode).To(Equal(schema.BootSeparateSubvolume))
		Expect(t.BootSubvolume).To(Equal("@boot"))
		Expect(t.BootPartitionUUID).To(BeEmpty())
		Expect(t.SnapshotSubvolume).To(Equal("@snapshots"))
	})

	It("classifies separate_partition with the UUID of the mounted device", func() {
		mounts.Infos = []*mountinfo.Info{
			mocks.BtrfsMount("/dev/sda3", "/", "@"),
			{Mountpoint: "/boot", Source: "/dev/sda2", FSType: "ext4", VFSOptions: "rw"},
		}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.BootMode).To(Equal(schema.BootSeparatePartition))
		Expect(t.BootPartitionUUID).To(Equal(bootUUID))
		Expect(console.Ran("blkid -s UUID -o value '/dev/sda2'")).To(Equal(1))
	})

	It("ignores a stale fstab line for /boot", func() {
		Expect(fs.WriteFile("/etc/fstab", []byte("UUID=aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa /boot ext4 defaults 0 2\n"), 0o644)).To(Succeed())
		mounts.Infos = []*mountinfo.Info{
			mocks.BtrfsMount("/dev/sda3", "/", "@"),
			{Mountpoint: "/boot", Source: "/dev/sda2", FSType: "ext4", VFSOptions: "rw"},
		}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.BootPartitionUUID).To(Equal(bootUUID))
	})

	It("falls back to fstab when blkid cannot read the boot device", func() {
		mounts.Infos = []*mountinfo.Info{
			mocks.BtrfsMount("/dev/sda3", "/", "@"),
			{Mountpoint: "/boot", Source: "/dev/sdb1", FSType: "ext4", VFSOptions: "rw"},
		}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.BootPartitionUUID).To(Equal(bootUUID))
		Expect(console.Ran("blkid -s UUID -o value '/dev/sdb1'")).To(Equal(1))
	})

	It("fails when neither blkid nor fstab know the boot partition", func() {
		Expect(fs.WriteFile("/etc/fstab", []byte("LABEL=BOOT /boot ext4 defaults 0 2\n"), 0o644)).To(Succeed())
		mounts.Infos = []*mountinfo.Info{
			mocks.BtrfsMount("/dev/sda3", "/", "@"),
			{Mountpoint: "/boot", Source: "/dev/sdb1", FSType: "ext4", VFSOptions: "rw"},
		}
		_, err := detector.Detect()
		Expect(err).To(MatchError(ContainSubstring("resolving boot partition UUID")))
	})

	It("treats a btrfs /boot on another device as a separate partition", func() {
		mounts.Infos = []*mountinfo.Info{
			mocks.BtrfsMount("/dev/sda3", "/", "@"),
			mocks.BtrfsMount("/dev/sda2", "/boot", "@boot"),
		}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.BootMode).To(Equal(schema.BootSeparatePartition))
	})

	It("uses the last mount stacked on a mount point", func() {
		mounts.Infos = []*mountinfo.Info{
			{Mountpoint: "/boot", Source: "/dev/sda2", FSType: "ext4"},
			mocks.BtrfsMount("/dev/sda3", "/boot", "@boot"),
		}
		Expect(topology.MountAt(mounts.Infos, "/boot/").Source).To(Equal("/dev/sda3"))
		Expect(topology.IsMountpoint(mounts.Infos, "/home")).To(BeFalse())
	})

	It("rejects a root that is not btrfs", func() {
		mounts.Infos = []*mountinfo.Info{{Mountpoint: "/", Source: "/dev/sda1", FSType: "ext4"}}
		_, err := detector.Detect()
		var unsupported *schema.UnsupportedVolumeError
		var precondition *schema.PreconditionError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
		Expect(errors.As(err, &precondition)).To(BeTrue())

		fsType, err := detector.RootFSType()
		Expect(err).ToNot(HaveOccurred())
		Expect(fsType).To(Equal("ext4"))
	})

	It("fails when the root UUID cannot be resolved", func() {
		console = mocks.NewFakeConsole()
		console.On("blkid", func(string) (string, error) { return "garbage", nil })
		detector.Console = console
		mounts.Infos = []*mountinfo.Info{mocks.BtrfsMount("/dev/sda3", "/", "@")}
		_, err := detector.Detect()
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(err.Error(), "root filesystem UUID")).To(BeTrue())
	})

	It("fails without a root mount", func() {
		mounts.Infos = nil
		_, err := detector.Detect()
		Expect(err).To(HaveOccurred())
	})

	It("handles a root on the top level subvolume", func() {
		mounts.Infos = []*mountinfo.Info{{Mountpoint: "/", Source: "/dev/sda3", FSType: "btrfs", Root: "/", VFSOptions: "rw,subvolid=5"}}
		t, err := detector.Detect()
		Expect(err).ToNot(HaveOccurred())
		Expect(t.RootSubvolume).To(BeEmpty())
		Expect(t.SnapshotSubvolume).To(Equal(".snapshots"))
	})
})
