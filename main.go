package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kairos-io/btrsnap/internal/cmd"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/internal/version"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/urfave/cli/v2"
)

const (
	exitOK             = 0
	exitError          = 1
	exitUnknownCommand = 2
)

type unknownCommandError struct {
	name string
}

func (e *unknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q, see %s help", e.name, version.Name)
}

// report prints validation errors plainly, anything else goes through the logger.
func report(w io.Writer, err error) {
	var precondition *schema.PreconditionError
	var notFound *schema.NotFoundError
	var unknown *unknownCommandError
	if errors.As(err, &precondition) || errors.As(err, &notFound) || errors.As(err, &unknown) {
		fmt.Fprintln(w, "error:", err)
		return
	}
	utils.Log.Err(err).Msg("command failed")
}

// exitCode maps the error of a run to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var unknown *unknownCommandError
	if errors.As(err, &unknown) {
		return exitUnknownCommand
	}
	return exitError
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = version.Name
	app.Usage = "btrfs root snapshots with boot entries"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "Kairos authors"}}
	app.Copyright = "kairos authors"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = cmd.GlobalFlags
	app.Commands = cmd.Commands
	app.Before = func(c *cli.Context) error {
		utils.SetLogger(c.Bool("debug"))
		return nil
	}
	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintln(c.App.ErrWriter, (&unknownCommandError{name: command}).Error())
	}
	app.Action = func(c *cli.Context) error {
		if c.Args().Present() {
			return &unknownCommandError{name: c.Args().First()}
		}
		return cli.ShowAppHelp(c)
	}
	return app
}

func run(args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).Run(args)
	if err != nil {
		report(stderr, err)
	}
	return exitCode(err)
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}
