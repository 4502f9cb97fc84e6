package mocks

import (
	"context"

	"github.com/deniswernert/go-fstab"
	"github.com/kairos-io/btrsnap/pkg/op"
	"github.com/moby/sys/mountinfo"
	"github.com/twpayne/go-vfs/v4"
)

// FakeMounts is a static mount table.
type FakeMounts struct {
	Infos []*mountinfo.Info
	Err   error
}

func (f *FakeMounts) Mounts() ([]*mountinfo.Info, error) {
	return f.Infos, f.Err
}

// BtrfsMount returns a btrfs mount of subvol on mountpoint.
func BtrfsMount(source, mountpoint, subvol string) *mountinfo.Info {
	return &mountinfo.Info{
		Mountpoint: mountpoint,
		Source:     source,
		FSType:     "btrfs",
		Root:       "/" + subvol,
		VFSOptions: "rw,relatime,space_cache=v2,subvolid=256,subvol=/" + subvol,
	}
}

// FakeMounter records subvolume mounts and adds them to Table.
type FakeMounter struct {
	FS    vfs.FS
	Table *FakeMounts
	Calls []string
	Err   error
}

func (f *FakeMounter) MountSubvolume(device, subvol, where string) (*fstab.Mount, error) {
	f.Calls = append(f.Calls, device+" "+subvol+" "+where)
	if f.Err != nil {
		return nil, f.Err
	}
	if err := vfs.MkdirAll(f.FS, where, 0o755); err != nil {
		return nil, err
	}
	if f.Table != nil {
		f.Table.Infos = append(f.Table.Infos, BtrfsMount(device, where, subvol))
	}
	m := op.SubvolumeMount(device, subvol, where)
	return &m.FstabEntry, nil
}

// FakeRegenerator counts regeneration passes.
type FakeRegenerator struct {
	Calls int
	Err   error
}

func (f *FakeRegenerator) Regenerate(_ context.Context) error {
	f.Calls++
	return f.Err
}

// FakeHooks records the stages run.
type FakeHooks struct {
	Stages []string
	Err    error
}

func (f *FakeHooks) RunStage(stage string) error {
	f.Stages = append(f.Stages, stage)
	return f.Err
}
