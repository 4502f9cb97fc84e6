package mocks

import (
	"fmt"
	"os/exec"
	"strings"
)

type handler struct {
	prefix string
	fn     func(cmd string) (string, error)
}

// FakeConsole records every command and answers from registered handlers.
// Commands with no matching handler succeed with empty output.
type FakeConsole struct {
	Commands []string
	// Paths are the binaries LookPath finds, keyed by name.
	Paths    map[string]string
	handlers []handler
}

func NewFakeConsole() *FakeConsole {
	return &FakeConsole{Paths: map[string]string{}}
}

// On registers fn for every command starting with prefix. The first match wins.
func (f *FakeConsole) On(prefix string, fn func(cmd string) (string, error)) *FakeConsole {
	f.handlers = append(f.handlers, handler{prefix: prefix, fn: fn})
	return f
}

// Provide makes LookPath find name.
func (f *FakeConsole) Provide(names ...string) *FakeConsole {
	for _, n := range names {
		f.Paths[n] = "/usr/sbin/" + n
	}
	return f
}

func (f *FakeConsole) Run(cmd string, _ ...func(cmd *exec.Cmd)) (string, error) {
	f.Commands = append(f.Commands, cmd)
	for _, h := range f.handlers {
		if strings.HasPrefix(cmd, h.prefix) {
			return h.fn(cmd)
		}
	}
	return "", nil
}

func (f *FakeConsole) Start(cmd *exec.Cmd, _ ...func(cmd *exec.Cmd)) error {
	_, err := f.Run(strings.Join(cmd.Args, " "))
	return err
}

func (f *FakeConsole) RunTemplate(st []string, template string) error {
	for _, s := range st {
		if _, err := f.Run(fmt.Sprintf(template, s)); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeConsole) LookPath(file string) (string, error) {
	if p, ok := f.Paths[file]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", file, exec.ErrNotFound)
}

// Ran counts the recorded commands starting with prefix.
func (f *FakeConsole) Ran(prefix string) int {
	n := 0
	for _, c := range f.Commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
