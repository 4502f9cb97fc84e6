package btrfs

import (
	"fmt"
	"strings"

	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/twpayne/go-vfs/v4"
)

// Volume is the set of btrfs operations btrsnap needs. Paths are absolute paths
// inside the filesystem the volume was built with.
type Volume interface {
	IsSubvolume(path string) bool
	CreateSubvolume(path string) error
	Snapshot(src, dst string, readonly bool) error
	Delete(path string) error
	GetReadonly(path string) (bool, error)
	SetReadonly(path string, readonly bool) error
}

// CLIVolume implements Volume with the btrfs command line tool.
type CLIVolume struct {
	FS      vfs.FS
	Console utils.Console
}

func NewCLIVolume(fs vfs.FS, console utils.Console) *CLIVolume {
	return &CLIVolume{FS: fs, Console: console}
}

func (v *CLIVolume) raw(path string) (string, error) {
	p, err := v.FS.RawPath(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return utils.ShellQuote(p), nil
}

func (v *CLIVolume) run(format string, paths ...string) (string, error) {
	var args []interface{}
	for _, p := range paths {
		r, err := v.raw(p)
		if err != nil {
			return "", err
		}
		args = append(args, r)
	}
	out, err := v.Console.Run(fmt.Sprintf(format, args...))
	if err != nil {
		utils.Log.Debug().Str("output", out).Msg("btrfs")
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(out))
	}
	return out, nil
}

func (v *CLIVolume) IsSubvolume(path string) bool {
	_, err := v.run("btrfs subvolume show %s", path)
	return err == nil
}

func (v *CLIVolume) CreateSubvolume(path string) error {
	_, err := v.run("btrfs subvolume create %s", path)
	return err
}

func (v *CLIVolume) Snapshot(src, dst string, readonly bool) error {
	if readonly {
		_, err := v.run("btrfs subvolume snapshot -r %s %s", src, dst)
		return err
	}
	_, err := v.run("btrfs subvolume snapshot %s %s", src, dst)
	return err
}

func (v *CLIVolume) Delete(path string) error {
	_, err := v.run("btrfs subvolume delete %s", path)
	return err
}

// GetReadonly reads the ro property, output looks like "ro=true".
func (v *CLIVolume) GetReadonly(path string) (bool, error) {
	out, err := v.run("btrfs property get -ts %s ro", path)
	if err != nil {
		return false, err
	}
	return ParseReadonly(out)
}

func (v *CLIVolume) SetReadonly(path string, readonly bool) error {
	if readonly {
		_, err := v.run("btrfs property set -ts %s ro true", path)
		return err
	}
	_, err := v.run("btrfs property set -ts %s ro false", path)
	return err
}

// ParseReadonly parses the output of btrfs property get ... ro
func ParseReadonly(out string) (bool, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "ro=") {
			continue
		}
		switch strings.TrimPrefix(line, "ro=") {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("unexpected property output: %q", strings.TrimSpace(out))
}
