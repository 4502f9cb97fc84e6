package kernel

import (
	"fmt"
	"path/filepath"

	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

// Resolver finds the kernel and initrd of a given version in the boot directory.
type Resolver struct {
	FS      vfs.FS
	BootDir string
}

func (r Resolver) first(candidates []string) (string, bool) {
	for _, c := range candidates {
		p := filepath.Join(r.BootDir, c)
		if utils.Exists(r.FS, p) {
			return p, true
		}
	}
	return filepath.Join(r.BootDir, candidates[0]), false
}

// Resolve probes the naming conventions in order. When nothing matches the primary
// name is returned anyway with Verified unset and a warning.
func (r Resolver) Resolve(version string) (schema.KernelArtifact, []schema.Warning) {
	var warnings []schema.Warning

	kernel, kernelFound := r.first(constants.KernelCandidates(version))
	if !kernelFound {
		warnings = append(warnings, schema.Warning{
			Step:    constants.OpResolveKernel,
			Message: fmt.Sprintf("no kernel found for %s in %s, using %s", version, r.BootDir, kernel),
			Remedy:  "set kernel_version in the configuration or check the boot directory",
		})
	}
	initrd, initrdFound := r.first(constants.InitrdCandidates(version))
	if !initrdFound {
		warnings = append(warnings, schema.Warning{
			Step:    constants.OpResolveKernel,
			Message: fmt.Sprintf("no initrd found for %s in %s, using %s", version, r.BootDir, initrd),
			Remedy:  "regenerate the initrd for the running kernel",
		})
	}

	utils.Log.Debug().Str("kernel", kernel).Str("initrd", initrd).Str("version", version).Msg("Resolved boot artifacts")
	return schema.KernelArtifact{
		KernelPath:    kernel,
		InitrdPath:    initrd,
		KernelVersion: version,
		Verified:      kernelFound && initrdFound,
	}, warnings
}
