package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/internal/version"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/urfave/cli/v2"
)

// GlobalFlags are accepted by every command.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to the configuration file",
		Value:   constants.ConfigFile,
		EnvVars: []string{"BTRSNAP_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "debug",
		Usage:   "enable debug logging",
		EnvVars: []string{"BTRSNAP_DEBUG"},
	},
}

// withRuntime runs fn with the wired components and prints the warnings of the
// regeneration pass, if any.
func withRuntime(c *cli.Context, mutating bool, fn func(r *runtime) error) error {
	r, err := newRuntime(c, mutating)
	if err != nil {
		return err
	}
	defer r.Close()

	err = fn(r)
	printWarnings(c.App.ErrWriter, r.state.Warnings)
	return err
}

func parseReadonly(arg string) (bool, error) {
	switch arg {
	case "", "readonly", "ro":
		return true, nil
	case "writable", "rw":
		return false, nil
	default:
		return false, schema.NewPreconditionError("invalid mode %q, use readonly or writable", arg)
	}
}

func requireName(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" {
		return "", schema.NewPreconditionError("%s needs a snapshot name", c.Command.Name)
	}
	return name, nil
}

type snapshotRemover interface {
	Get(name string) (schema.Snapshot, error)
	Remove(ctx context.Context, name string) error
}

// removeSnapshot prints the caution only for snapshots that exist.
func removeSnapshot(ctx context.Context, out, errOut io.Writer, store snapshotRemover, name string) error {
	if _, err := store.Get(name); err != nil {
		return err
	}
	printCaution(errOut, fmt.Sprintf("%s is deleted permanently", name))
	if err := store.Remove(ctx, name); err != nil {
		return err
	}
	printSuccess(out, "Removed "+name)
	return nil
}

var Commands = []*cli.Command{
	{
		Name:      "create-snapshot",
		Usage:     "Take a snapshot of the root subvolume",
		ArgsUsage: "[label] [readonly|writable]",
		Description: `
Snapshots the active root subvolume into the snapshot subvolume, read-only unless writable is given.
The boot entries are regenerated afterwards.
`,
		Action: func(c *cli.Context) error {
			readonly, err := parseReadonly(c.Args().Get(1))
			if err != nil {
				return err
			}
			return withRuntime(c, true, func(r *runtime) error {
				snap, err := r.store.Create(c.Context, c.Args().First(), readonly)
				if err != nil {
					return err
				}
				printSuccess(c.App.Writer, fmt.Sprintf("Created %s (%s)", snap.Name, mode(snap)))
				return nil
			})
		},
	},
	{
		Name:    "list-snapshots",
		Aliases: []string{"list"},
		Usage:   "List the snapshots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: table, yaml or json",
				Value:   "table",
			},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, false, func(r *runtime) error {
				snaps, err := r.store.List()
				if err != nil {
					return err
				}
				return printSnapshots(c.App.Writer, snaps, c.String("output"), r.state.Config.SnapshotDir)
			})
		},
	},
	{
		Name:      "remove-snapshot",
		Usage:     "Delete a snapshot",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}
			return withRuntime(c, true, func(r *runtime) error {
				return removeSnapshot(c.Context, c.App.Writer, c.App.ErrWriter, r.store, name)
			})
		},
	},
	{
		Name:      "make-writable",
		Usage:     "Make a snapshot writable",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}
			return withRuntime(c, true, func(r *runtime) error {
				if err := r.store.SetWritable(c.Context, name); err != nil {
					return err
				}
				printSuccess(c.App.Writer, name+" is now writable")
				return nil
			})
		},
	},
	{
		Name:      "make-readonly",
		Usage:     "Make a snapshot read-only",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name, err := requireName(c)
			if err != nil {
				return err
			}
			return withRuntime(c, true, func(r *runtime) error {
				if err := r.store.SetReadonly(c.Context, name); err != nil {
					return err
				}
				printSuccess(c.App.Writer, name+" is now read-only")
				return nil
			})
		},
	},
	{
		Name:      "cleanup-old",
		Usage:     "Delete the oldest snapshots, keeping the newest ones",
		ArgsUsage: "[keep]",
		Action: func(c *cli.Context) error {
			keep := -1
			if arg := c.Args().First(); arg != "" {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return schema.NewPreconditionError("invalid keep value %q", arg)
				}
				if n < 0 {
					return schema.NewPreconditionError("keep must not be negative, got %d", n)
				}
				keep = n
			}
			return withRuntime(c, true, func(r *runtime) error {
				if keep < 0 {
					keep = r.state.Config.Keep
				}
				removed, err := r.store.CleanupOld(c.Context, keep)
				if len(removed) > 0 {
					printCaution(c.App.ErrWriter, fmt.Sprintf("deleted %d snapshots permanently", len(removed)))
				}
				for _, name := range removed {
					fmt.Fprintln(c.App.Writer, "Removed "+name)
				}
				return err
			})
		},
	},
	{
		Name:  "update-grub-entries",
		Usage: "Regenerate the boot entries from the snapshots on disk",
		Action: func(c *cli.Context) error {
			return withRuntime(c, true, func(r *runtime) error {
				if err := r.regen.Regenerate(c.Context); err != nil {
					return err
				}
				msg := fmt.Sprintf("%d boot entries written to %s", len(r.state.Entries()), r.state.Config.EntriesFile)
				if t := r.state.Topology(); t != nil {
					msg += fmt.Sprintf(" (boot layout: %s)", t.BootMode)
				}
				printSuccess(c.App.Writer, msg)
				return nil
			})
		},
	},
	{
		Name:  "version",
		Usage: "version",
		Action: func(c *cli.Context) error {
			v := version.Get()
			utils.Log.Debug().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg(version.Name)
			fmt.Fprintf(c.App.Writer, "%s %s (commit %s, %s)\n", version.Name, v.Version, v.GitCommit, v.GoVersion)
			return nil
		},
	},
}
