package cmd

import (
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/btrfs"
	"github.com/kairos-io/btrsnap/pkg/dag"
	"github.com/kairos-io/btrsnap/pkg/grub"
	"github.com/kairos-io/btrsnap/pkg/kernel"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/kairos-io/btrsnap/pkg/snapshot"
	"github.com/kairos-io/btrsnap/pkg/state"
	"github.com/kairos-io/btrsnap/pkg/topology"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

// runtime is the wired set of components for one command.
type runtime struct {
	state   *state.State
	store   *snapshot.Store
	regen   *dag.Regenerator
	release func()
}

// Build wires every component on top of fs and console.
func Build(fs vfs.FS, console utils.Console, mounts topology.MountTable, cfg schema.Config) (*state.State, *snapshot.Store, *dag.Regenerator) {
	detector := &topology.Detector{
		FS:          fs,
		Mounts:      mounts,
		Console:     console,
		RootDir:     cfg.RootDir,
		BootDir:     cfg.BootDir,
		SnapshotDir: cfg.SnapshotDir,
	}
	volume := btrfs.NewCLIVolume(fs, console)

	st := &state.State{
		Config:   cfg,
		FS:       fs,
		Console:  console,
		Detector: detector,
		Resolver: kernel.Resolver{FS: fs, BootDir: cfg.BootDir},
		Synth:    grub.Synthesizer{FS: fs, DefaultGrub: cfg.DefaultGrub, RootDir: cfg.RootDir},
		Publisher: &grub.Publisher{
			FS:          fs,
			Console:     console,
			EntriesFile: cfg.EntriesFile,
			GrubConfigs: cfg.GrubConfigs,
			Compilers:   cfg.Compilers,
			EFIDir:      cfg.EFIDir,
			EFIVendors:  cfg.EFIVendors,
		},
	}
	regen := &dag.Regenerator{State: st}
	hooks := utils.StageRunner{Dir: cfg.HooksDir, Console: console}
	store := snapshot.NewStore(fs, volume, detector, mounts, regen, hooks, cfg)
	st.Snapshots = store
	return st, store, regen
}

// newRuntime checks the requirements and wires the components. Mutating commands hold
// the lock until Close.
func newRuntime(c *cli.Context, mutating bool) (*runtime, error) {
	cfg, err := utils.LoadConfig(vfs.OSFS, c.String("config"))
	if err != nil {
		return nil, err
	}

	if !utils.IsRoot() {
		return nil, schema.NewPreconditionError("btrsnap must be run as root")
	}
	console := utils.SystemConsole{}
	if _, err := console.LookPath("btrfs"); err != nil {
		return nil, schema.NewPreconditionError("btrfs command not found, install btrfs-progs")
	}

	r := &runtime{release: func() {}}
	if mutating {
		r.release, err = utils.Lock(cfg.LockFile)
		if err != nil {
			return nil, err
		}
	}

	r.state, r.store, r.regen = Build(vfs.OSFS, console, topology.SystemMounts{}, cfg)
	r.state.KernelRelease, err = utils.KernelRelease()
	if err != nil {
		utils.Log.Warn().Err(err).Msg("could not read the running kernel version")
	}
	return r, nil
}

func (r *runtime) Close() {
	r.release()
}
