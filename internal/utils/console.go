package utils

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Console runs external commands. It satisfies yip's plugins.Console so hook stages
// go through the same runner as the btrfs and grub commands.
type Console interface {
	Run(cmd string, opts ...func(cmd *exec.Cmd)) (string, error)
	Start(cmd *exec.Cmd, opts ...func(cmd *exec.Cmd)) error
	RunTemplate(st []string, template string) error
	LookPath(file string) (string, error)
}

// SystemConsole runs commands on the host with sbin directories added to PATH,
// as btrfs and blkid are usually not in a sudo PATH.
type SystemConsole struct {
}

var sbinPaths = []string{"/sbin", "/usr/sbin", "/usr/local/sbin"}

func pathWithSbin() string {
	current := strings.Split(os.Getenv("PATH"), ":")
	return strings.Join(UniqueSlice(CleanupSlice(append(current, sbinPaths...))), ":")
}

// PrepareCommandWithPath returns a shell command with an extended PATH.
func PrepareCommandWithPath(cmd string) *exec.Cmd {
	c := exec.Command("/bin/sh", "-c", cmd)
	c.Env = append(os.Environ(), fmt.Sprintf("PATH=%s", pathWithSbin()))
	return c
}

func (s SystemConsole) Run(cmd string, opts ...func(cmd *exec.Cmd)) (string, error) {
	c := PrepareCommandWithPath(cmd)
	for _, o := range opts {
		o(c)
	}
	Log.Debug().Str("cmd", cmd).Msg("Running command")
	out, err := c.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("failed to run %s: %v", cmd, err)
	}

	return string(out), err
}

func (s SystemConsole) Start(cmd *exec.Cmd, opts ...func(cmd *exec.Cmd)) error {
	for _, o := range opts {
		o(cmd)
	}
	return cmd.Run()
}

func (s SystemConsole) RunTemplate(st []string, template string) error {
	var errs error

	for _, svc := range st {
		out, err := s.Run(fmt.Sprintf(template, svc))
		if err != nil {
			Log.Debug().Str("output", out).Msg("Run template")
			errs = multierror.Append(errs, err)
			continue
		}
	}
	return errs
}

// LookPath searches for an executable in PATH plus the sbin directories.
func (s SystemConsole) LookPath(file string) (string, error) {
	if strings.Contains(file, "/") {
		return exec.LookPath(file)
	}
	for _, dir := range strings.Split(pathWithSbin(), ":") {
		p, err := exec.LookPath(dir + "/" + file)
		if err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", file, exec.ErrNotFound)
}

// ShellQuote quotes s for use as a single /bin/sh word.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
