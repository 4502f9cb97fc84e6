package kernel_test

import (
	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/pkg/kernel"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4/vfst"
)

var _ = Describe("KernelResolver", func() {
	resolve := func(files map[string]interface{}) (kernel.Resolver, func()) {
		if files == nil {
			files = map[string]interface{}{"/boot": &vfst.Dir{Perm: 0o755}}
		}
		fs, cleanup, err := vfst.NewTestFS(files)
		Expect(err).ToNot(HaveOccurred())
		return kernel.Resolver{FS: fs, BootDir: "/boot"}, cleanup
	}

	It("finds vmlinuz and initramfs for 6.1.0-amd64", func() {
		r, cleanup := resolve(map[string]interface{}{
			"/boot/vmlinuz-6.1.0-amd64":       "kernel",
			"/boot/initramfs-6.1.0-amd64.img": "initrd",
		})
		defer cleanup()

		k, warnings := r.Resolve("6.1.0-amd64")
		Expect(warnings).To(BeEmpty())
		Expect(k.KernelPath).To(Equal("/boot/vmlinuz-6.1.0-amd64"))
		Expect(k.InitrdPath).To(Equal("/boot/initramfs-6.1.0-amd64.img"))
		Expect(k.KernelVersion).To(Equal("6.1.0-amd64"))
		Expect(k.Verified).To(BeTrue())
	})

	It("prefers initrd.img over initramfs", func() {
		r, cleanup := resolve(map[string]interface{}{
			"/boot/vmlinuz-6.1.0-amd64":       "kernel",
			"/boot/initrd.img-6.1.0-amd64":    "initrd",
			"/boot/initramfs-6.1.0-amd64.img": "initrd",
		})
		defer cleanup()

		k, _ := r.Resolve("6.1.0-amd64")
		Expect(k.InitrdPath).To(Equal("/boot/initrd.img-6.1.0-amd64"))
	})

	It("falls back to the unversioned names", func() {
		r, cleanup := resolve(map[string]interface{}{
			"/boot/vmlinuz":       "kernel",
			"/boot/initramfs.img": "initrd",
		})
		defer cleanup()

		k, warnings := r.Resolve("6.8.0")
		Expect(warnings).To(BeEmpty())
		Expect(k.KernelPath).To(Equal("/boot/vmlinuz"))
		Expect(k.InitrdPath).To(Equal("/boot/initramfs.img"))
	})

	It("uses kernel- and initrd- names", func() {
		r, cleanup := resolve(map[string]interface{}{
			"/boot/kernel-6.8.0": "kernel",
			"/boot/initrd-6.8.0": "initrd",
		})
		defer cleanup()

		k, _ := r.Resolve("6.8.0")
		Expect(k.KernelPath).To(Equal("/boot/kernel-6.8.0"))
		Expect(k.InitrdPath).To(Equal("/boot/initrd-6.8.0"))
	})

	It("returns the primary guess with warnings when nothing is found", func() {
		r, cleanup := resolve(nil)
		defer cleanup()

		k, warnings := r.Resolve("6.1.0-amd64")
		Expect(k.Verified).To(BeFalse())
		Expect(k.KernelPath).To(Equal("/boot/vmlinuz-6.1.0-amd64"))
		Expect(k.InitrdPath).To(Equal("/boot/initrd.img-6.1.0-amd64"))
		Expect(warnings).To(HaveLen(2))
		Expect(warnings[0].Step).To(Equal(constants.OpResolveKernel))
		Expect(warnings[0].Message).To(ContainSubstring("/boot/vmlinuz-6.1.0-amd64"))
	})
})
