package mocks

import (
	"fmt"

	"github.com/twpayne/go-vfs/v4"
)

// FakeVolume emulates btrfs subvolumes as plain directories on a vfs.
type FakeVolume struct {
	FS         vfs.FS
	Subvolumes map[string]bool
	RO         map[string]bool
	Deleted    []string
}

func NewFakeVolume(fs vfs.FS, subvolumes ...string) *FakeVolume {
	v := &FakeVolume{FS: fs, Subvolumes: map[string]bool{}, RO: map[string]bool{}}
	for _, s := range subvolumes {
		v.Subvolumes[s] = true
	}
	return v
}

func (v *FakeVolume) IsSubvolume(path string) bool {
	return v.Subvolumes[path]
}

func (v *FakeVolume) CreateSubvolume(path string) error {
	if _, err := v.FS.Stat(path); err == nil {
		return fmt.Errorf("target path already exists: %s", path)
	}
	if err := vfs.MkdirAll(v.FS, path, 0o755); err != nil {
		return err
	}
	v.Subvolumes[path] = true
	return nil
}

func (v *FakeVolume) Snapshot(src, dst string, readonly bool) error {
	if !v.Subvolumes[src] {
		return fmt.Errorf("not a subvolume: %s", src)
	}
	if err := v.CreateSubvolume(dst); err != nil {
		return err
	}
	v.RO[dst] = readonly
	return nil
}

func (v *FakeVolume) Delete(path string) error {
	if !v.Subvolumes[path] {
		return fmt.Errorf("not a subvolume: %s", path)
	}
	if v.RO[path] {
		return fmt.Errorf("cannot delete %s: read-only file system", path)
	}
	if err := v.FS.RemoveAll(path); err != nil {
		return err
	}
	delete(v.Subvolumes, path)
	delete(v.RO, path)
	v.Deleted = append(v.Deleted, path)
	return nil
}

func (v *FakeVolume) GetReadonly(path string) (bool, error) {
	if !v.Subvolumes[path] {
		return false, fmt.Errorf("not a subvolume: %s", path)
	}
	return v.RO[path], nil
}

func (v *FakeVolume) SetReadonly(path string, readonly bool) error {
	if !v.Subvolumes[path] {
		return fmt.Errorf("not a subvolume: %s", path)
	}
	v.RO[path] = readonly
	return nil
}
