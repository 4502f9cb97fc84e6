package state

import (
	"fmt"

	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/grub"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// SnapshotLister gives the current snapshots.
type SnapshotLister interface {
	List() ([]schema.Snapshot, error)
}

// TopologyDetector returns the current volume topology.
type TopologyDetector interface {
	Detect() (*schema.VolumeTopology, error)
}

// KernelResolver locates the boot artifacts of a kernel version.
type KernelResolver interface {
	Resolve(version string) (schema.KernelArtifact, []schema.Warning)
}

// State carries everything a regeneration pass needs plus the results of its steps.
type State struct {
	Config  schema.Config
	FS      vfs.FS
	Console utils.Console

	Snapshots SnapshotLister
	Detector  TopologyDetector
	Resolver  KernelResolver
	Synth     grub.Synthesizer
	Publisher *grub.Publisher

	// KernelRelease is the running kernel, the config kernel_version wins over it.
	KernelRelease string

	snapshots []schema.Snapshot
	topology  *schema.VolumeTopology
	kernel    *schema.KernelArtifact
	entries   []schema.BootEntry
	written   bool

	Warnings []schema.Warning
}

// Reset clears the results of a previous pass.
func (s *State) Reset() {
	s.snapshots = nil
	s.topology = nil
	s.kernel = nil
	s.entries = nil
	s.written = false
	s.Warnings = nil
}

func (s *State) Topology() *schema.VolumeTopology { return s.topology }

func (s *State) Entries() []schema.BootEntry { return s.entries }

// AddWarning records a degraded outcome.
func (s *State) AddWarning(w schema.Warning) {
	utils.Log.Warn().Str("step", w.Step).Str("remedy", w.Remedy).Msg(w.Message)
	s.Warnings = append(s.Warnings, w)
}

func (s *State) kernelVersion() string {
	if s.Config.KernelVersion != "" {
		return s.Config.KernelVersion
	}
	return s.KernelRelease
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Error.Error(), op.Background, op.WeakDeps, op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Background, op.WeakDeps, op.Executed)
			}
		}
	}
	return
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		utils.Log.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		utils.Log.Err(e).Msg(msgContext)
	}
	return e
}
