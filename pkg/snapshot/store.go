package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avast/retry-go"
	"github.com/deniswernert/go-fstab"
	"github.com/hashicorp/go-multierror"
	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/btrfs"
	"github.com/kairos-io/btrsnap/pkg/op"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/kairos-io/btrsnap/pkg/topology"
	"github.com/moby/sys/mountinfo"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/twpayne/go-vfs/v4"
)

var errNameTaken = errors.New("snapshot name already taken")

// Regenerator rebuilds the boot entries from the current snapshots.
type Regenerator interface {
	Regenerate(ctx context.Context) error
}

// Hooks runs the user hook stages.
type Hooks interface {
	RunStage(stage string) error
}

// HolderMounter mounts a subvolume of a btrfs device on a directory.
type HolderMounter interface {
	MountSubvolume(device, subvol, where string) (*fstab.Mount, error)
}

// RootProbe reports the filesystem of the root directory.
type RootProbe interface {
	RootFSType() (string, error)
}

// Store manages the snapshots of the root subvolume. Every mutating call ends
// with a regeneration of the boot entries.
type Store struct {
	FS      vfs.FS
	Volume  btrfs.Volume
	Probe   RootProbe
	Mounts  topology.MountTable
	Mounter HolderMounter
	Regen   Regenerator
	Hooks   Hooks
	Config  schema.Config
	Clock   func() time.Time
	// NameRetryDelay is the wait before building a new name after a collision.
	NameRetryDelay time.Duration
}

func NewStore(fs vfs.FS, volume btrfs.Volume, probe RootProbe, mounts topology.MountTable, regen Regenerator, hooks Hooks, cfg schema.Config) *Store {
	return &Store{
		FS:             fs,
		Volume:         volume,
		Probe:          probe,
		Mounts:         mounts,
		Mounter:        op.SubvolumeMounter{FS: fs},
		Regen:          regen,
		Hooks:          hooks,
		Config:         cfg,
		Clock:          time.Now,
		NameRetryDelay: time.Second,
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Config.SnapshotDir, name)
}

func (s *Store) runStage(stage string) {
	if s.Hooks == nil {
		return
	}
	if err := s.Hooks.RunStage(stage); err != nil {
		utils.Log.Warn().Err(err).Str("stage", stage).Msg("hook stage failed, continuing")
	}
}

// prepare makes sure the snapshot holder exists.
func (s *Store) prepare() error {
	if s.Config.SnapshotSubvolume != "" && s.Mounts != nil {
		mounts, err := s.Mounts.Mounts()
		if err != nil {
			return err
		}
		if !topology.IsMountpoint(mounts, s.Config.SnapshotDir) {
			return s.mountHolder(mounts)
		}
		return nil
	}

	if utils.Exists(s.FS, s.Config.SnapshotDir) {
		if !s.Volume.IsSubvolume(s.Config.SnapshotDir) {
			return schema.NewPreconditionError("%s exists but is not a btrfs subvolume", s.Config.SnapshotDir)
		}
		return nil
	}
	utils.Log.Info().Str("dir", s.Config.SnapshotDir).Msg("Creating snapshot subvolume")
	return s.Volume.CreateSubvolume(s.Config.SnapshotDir)
}

// mountHolder mounts the configured top level subvolume on the snapshot directory.
func (s *Store) mountHolder(mounts []*mountinfo.Info) error {
	root := topology.MountAt(mounts, s.Config.RootDir)
	if root == nil {
		return fmt.Errorf("no mount found for %s", s.Config.RootDir)
	}
	entry, err := s.Mounter.MountSubvolume(root.Source, s.Config.SnapshotSubvolume, s.Config.SnapshotDir)
	if err != nil {
		return err
	}
	utils.Log.Info().Str("fstab", entry.String()).Msg("Mounted snapshot subvolume, add this line to /etc/fstab to keep it across reboots")
	return nil
}

func (s *Store) newName(label string) (string, error) {
	var name string
	err := retry.Do(func() error {
		name = NewName(s.Clock(), label)
		if utils.Exists(s.FS, s.path(name)) {
			return fmt.Errorf("%w: %s", errNameTaken, name)
		}
		return nil
	}, retry.Attempts(3), retry.Delay(s.NameRetryDelay), retry.DelayType(retry.FixedDelay), retry.LastErrorOnly(true))
	return name, err
}

func (s *Store) checkFreeSpace() {
	raw, err := s.FS.RawPath(s.Config.SnapshotDir)
	if err != nil {
		return
	}
	usage, err := disk.Usage(raw)
	if err != nil {
		utils.Log.Debug().Err(err).Msg("checking free space")
		return
	}
	if usage.UsedPercent >= constants.LowSpacePercent {
		utils.Log.Warn().Float64("used", usage.UsedPercent).Str("path", usage.Path).
			Msg("Volume is almost full, snapshots keep old data alive and may fill it up")
	}
}

// Create snapshots the active root subvolume into the snapshot holder.
func (s *Store) Create(ctx context.Context, label string, readonly bool) (schema.Snapshot, error) {
	fsType, err := s.Probe.RootFSType()
	if err != nil {
		return schema.Snapshot{}, err
	}
	if fsType != "btrfs" {
		return schema.Snapshot{}, &schema.UnsupportedVolumeError{FSType: fsType}
	}

	if err := s.prepare(); err != nil {
		return schema.Snapshot{}, fmt.Errorf("preparing snapshot subvolume: %w", err)
	}

	name, err := s.newName(label)
	if err != nil {
		return schema.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return schema.Snapshot{}, err
	}

	s.checkFreeSpace()
	s.runStage(constants.StageSnapshotBefore)

	utils.Log.Info().Str("name", name).Bool("readonly", readonly).Str("source", s.Config.RootDir).Msg("Creating snapshot")
	if err := s.Volume.Snapshot(s.Config.RootDir, s.path(name), readonly); err != nil {
		return schema.Snapshot{}, fmt.Errorf("creating snapshot %s: %w", name, err)
	}

	s.runStage(constants.StageSnapshotAfter)

	snap, err := s.Get(name)
	if err != nil {
		return schema.Snapshot{}, err
	}
	return snap, s.Regen.Regenerate(ctx)
}

func (s *Store) read(name string) (schema.Snapshot, bool) {
	created, label, ok := ParseName(name)
	if !ok {
		return schema.Snapshot{}, false
	}
	ro, err := s.Volume.GetReadonly(s.path(name))
	if err != nil {
		utils.Log.Debug().Err(err).Str("name", name).Msg("Skipping entry, not a snapshot")
		return schema.Snapshot{}, false
	}
	return schema.Snapshot{
		Name:            name,
		CreatedAt:       created,
		Label:           label,
		Readonly:        ro,
		SourceSubvolume: s.Config.RootDir,
	}, true
}

// List returns the snapshots sorted by name, oldest first.
func (s *Store) List() ([]schema.Snapshot, error) {
	entries, err := s.FS.ReadDir(s.Config.SnapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []schema.Snapshot{}, nil
		}
		return nil, err
	}

	snaps := []schema.Snapshot{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if snap, ok := s.read(e.Name()); ok {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

func (s *Store) Get(name string) (schema.Snapshot, error) {
	if fi, err := s.FS.Stat(s.path(name)); err != nil || !fi.IsDir() {
		return schema.Snapshot{}, &schema.NotFoundError{Name: name}
	}
	snap, ok := s.read(name)
	if !ok {
		return schema.Snapshot{}, &schema.NotFoundError{Name: name}
	}
	return snap, nil
}

func (s *Store) delete(snap schema.Snapshot) error {
	if snap.Readonly {
		if err := s.Volume.SetReadonly(s.path(snap.Name), false); err != nil {
			return fmt.Errorf("making %s writable before removal: %w", snap.Name, err)
		}
	}
	utils.Log.Warn().Str("name", snap.Name).Msg("Deleting snapshot permanently, this cannot be undone")
	s.runStage(constants.StageSnapshotRemove)
	return s.Volume.Delete(s.path(snap.Name))
}

// Remove deletes a snapshot, read-only ones included.
func (s *Store) Remove(ctx context.Context, name string) error {
	snap, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := s.delete(snap); err != nil {
		return err
	}
	return s.Regen.Regenerate(ctx)
}

func (s *Store) setReadonly(ctx context.Context, name string, readonly bool) error {
	if _, err := s.Get(name); err != nil {
		return err
	}
	if err := s.Volume.SetReadonly(s.path(name), readonly); err != nil {
		return err
	}
	utils.Log.Info().Str("name", name).Bool("readonly", readonly).Msg("Snapshot updated")
	return s.Regen.Regenerate(ctx)
}

func (s *Store) SetReadonly(ctx context.Context, name string) error {
	return s.setReadonly(ctx, name, true)
}

func (s *Store) SetWritable(ctx context.Context, name string) error {
	return s.setReadonly(ctx, name, false)
}

// CleanupOld deletes the oldest snapshots so that at most keep remain. It regenerates
// once at the end and does nothing at all when there is nothing to delete.
func (s *Store) CleanupOld(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		return nil, schema.NewPreconditionError("keep must not be negative, got %d", keep)
	}
	snaps, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(snaps) <= keep {
		utils.Log.Info().Int("total", len(snaps)).Int("keep", keep).Msg("Nothing to clean up")
		return nil, nil
	}

	var removed []string
	var errs error
	for _, snap := range snaps[:len(snaps)-keep] {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		if err := s.delete(snap); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed = append(removed, snap.Name)
	}

	if err := s.Regen.Regenerate(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	return removed, errs
}
