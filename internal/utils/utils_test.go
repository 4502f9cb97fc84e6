package utils_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/containerd/containerd/mount"
	"github.com/gofrs/flock"
	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

var _ = Describe("utils", func() {
	var fs vfs.FS
	var cleanup func()

	BeforeEach(func() {
		var err error
		fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
			"/etc/default/grub":          "GRUB_DEFAULT=0\nGRUB_CMDLINE_LINUX_DEFAULT=\"quiet splash\"\nGRUB_CMDLINE_LINUX=\"\"\n",
			"/etc/btrsnap/partial.yaml":  "keep: 3\nsnapshot_subvolume: \"@snapshots\"\n",
			"/etc/btrsnap/negative.yaml": "keep: -1\n",
			"/etc/btrsnap/broken.yaml":   "keep: [\n",
			"/etc/btrsnap/zero.yaml":     "keep: 0\nroot_dir: \"\"\n",
		})
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		cleanup()
	})

	Context("UniqueSlice", func() {
		It("Removes duplicates", func() {
			dups := []string{"a", "b", "c", "d", "b", "a"}
			dupsRemoved := utils.UniqueSlice(dups)
			Expect(dupsRemoved).To(Equal([]string{"a", "b", "c", "d"}))
		})
	})
	Context("CleanupSlice", func() {
		It("Removes empty values", func() {
			Expect(utils.CleanupSlice([]string{"a", "", " ", "b"})).To(Equal([]string{"a", "b"}))
		})
	})
	Context("ReadEnv", func() {
		It("Parses correctly an env file", func() {
			env, err := utils.ReadEnv(fs, "/etc/default/grub")
			Expect(err).ToNot(HaveOccurred())
			Expect(env["GRUB_CMDLINE_LINUX_DEFAULT"]).To(Equal("quiet splash"))
			Expect(env["GRUB_DEFAULT"]).To(Equal("0"))
			Expect(env).To(HaveKeyWithValue("GRUB_CMDLINE_LINUX", ""))
		})
		It("Fails on a missing file", func() {
			_, err := utils.ReadEnv(fs, "/etc/default/nope")
			Expect(err).To(HaveOccurred())
		})
	})
	Context("mounts", func() {
		It("Reads UUID specs", func() {
			Expect(utils.SpecUUID("UUID=abcd")).To(Equal("abcd"))
			Expect(utils.SpecUUID("LABEL=abcd")).To(BeEmpty())
		})
		It("Reads the subvolume from mount options", func() {
			sub, ok := utils.SubvolOption("rw,relatime,space_cache=v2,subvolid=256,subvol=/@")
			Expect(ok).To(BeTrue())
			Expect(sub).To(Equal("@"))
			sub, ok = utils.SubvolOption("rw,subvol=/@/.snapshots")
			Expect(ok).To(BeTrue())
			Expect(sub).To(Equal("@/.snapshots"))
			_, ok = utils.SubvolOption("rw,relatime")
			Expect(ok).To(BeFalse())
		})
		It("Converts a mount into an fstab entry", func() {
			entry := utils.MountToFstab(mount.Mount{Type: "btrfs", Source: "/dev/sda3", Options: []string{"rw", "subvol=@snapshots"}})
			entry.File = "/.snapshots"
			Expect(entry.Spec).To(Equal("/dev/sda3"))
			Expect(entry.VfsType).To(Equal("btrfs"))
			Expect(entry.MntOps).To(HaveKeyWithValue("subvol", "@snapshots"))
			Expect(entry.MntOps).To(HaveKey("rw"))
			Expect(entry.String()).To(ContainSubstring("/.snapshots"))
		})
	})
	Context("LoadConfig", func() {
		It("Returns the defaults without a file", func() {
			cfg, err := utils.LoadConfig(fs, constants.ConfigFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg).To(Equal(schema.DefaultConfig()))
		})
		It("Merges a partial file with the defaults", func() {
			cfg, err := utils.LoadConfig(fs, "/etc/btrsnap/partial.yaml")
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Keep).To(Equal(3))
			Expect(cfg.SnapshotSubvolume).To(Equal("@snapshots"))
			Expect(cfg.SnapshotDir).To(Equal(constants.DefaultSnapshotDir))
			Expect(cfg.Compilers).To(Equal(constants.DefaultCompilers()))
		})
		It("Keeps an explicit keep of 0", func() {
			cfg, err := utils.LoadConfig(fs, "/etc/btrsnap/zero.yaml")
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Keep).To(Equal(0))
			Expect(cfg.RootDir).To(Equal(constants.DefaultRootDir))
		})
		It("Rejects invalid files", func() {
			var precondition *schema.PreconditionError
			_, err := utils.LoadConfig(fs, "/etc/btrsnap/negative.yaml")
			Expect(errors.As(err, &precondition)).To(BeTrue())
			_, err = utils.LoadConfig(fs, "/etc/btrsnap/broken.yaml")
			Expect(errors.As(err, &precondition)).To(BeTrue())
		})
	})
	Context("Lock", func() {
		It("Holds the lock until released", func() {
			path := filepath.Join(GinkgoT().TempDir(), "run", "btrsnap.lock")
			release, err := utils.Lock(path)
			Expect(err).ToNot(HaveOccurred())

			other := flock.New(path)
			locked, err := other.TryLock()
			Expect(err).ToNot(HaveOccurred())
			Expect(locked).To(BeFalse())

			release()
			locked, err = other.TryLock()
			Expect(err).ToNot(HaveOccurred())
			Expect(locked).To(BeTrue())
			Expect(other.Unlock()).To(Succeed())
		})
	})
	Context("NewLogger", func() {
		It("Writes into the log directory", func() {
			dir := GinkgoT().TempDir()
			l := utils.NewLogger("debug", dir)
			l.Logger.Debug().Msg("hello from btrsnap")
			content, err := os.ReadFile(filepath.Join(dir, "btrsnap.log"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(ContainSubstring("hello from btrsnap"))
			Expect(l.IsDebug()).To(BeTrue())
		})
	})
	Context("helpers", func() {
		It("Quotes for the shell", func() {
			Expect(utils.ShellQuote("/tmp/a b")).To(Equal("'/tmp/a b'"))
			Expect(utils.ShellQuote("it's")).To(Equal(`'it'\''s'`))
		})
		It("Formats sizes", func() {
			Expect(utils.FormatBytes(512)).To(Equal("512 B"))
			Expect(utils.FormatBytes(1536)).To(Equal("1.5 KiB"))
			Expect(utils.FormatBytes(3 * 1024 * 1024 * 1024)).To(Equal("3.0 GiB"))
		})
		It("Creates missing directories", func() {
			Expect(utils.CreateIfNotExists(fs, "/var/lib/btrsnap/x")).To(Succeed())
			Expect(utils.Exists(fs, "/var/lib/btrsnap/x")).To(BeTrue())
			Expect(utils.CreateIfNotExists(fs, "/var/lib/btrsnap/x")).To(Succeed())
		})
	})
})
