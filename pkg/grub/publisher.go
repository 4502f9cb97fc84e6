package grub

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/foxboron/go-uefi/efi"
	"github.com/hashicorp/go-multierror"
	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

// Publisher writes the entries file and gets it into the grub configuration.
type Publisher struct {
	FS          vfs.FS
	Console     utils.Console
	EntriesFile string
	GrubConfigs []string
	Compilers   []string
	EFIDir      string
	EFIVendors  []string
	// SecureBoot reports the firmware Secure Boot state, defaults to go-uefi.
	SecureBoot func() bool

	compiler string
	mirrored string
}

// WriteEntries replaces the entries file with fragment and makes it executable.
func (p *Publisher) WriteEntries(fragment string) error {
	if err := utils.CreateIfNotExists(p.FS, filepath.Dir(p.EntriesFile)); err != nil {
		return err
	}
	if err := p.FS.WriteFile(p.EntriesFile, []byte(fragment), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", p.EntriesFile, err)
	}
	// WriteFile does not change the mode of an existing file
	if err := p.FS.Chmod(p.EntriesFile, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", p.EntriesFile, err)
	}
	utils.Log.Info().Str("file", p.EntriesFile).Msg("Boot entries written")
	return nil
}

// findCompiler returns the first compiler command whose binary is available.
func (p *Publisher) findCompiler() string {
	for _, c := range p.Compilers {
		fields := strings.Fields(c)
		if len(fields) == 0 {
			continue
		}
		if _, err := p.Console.LookPath(fields[0]); err == nil {
			return c
		}
	}
	return ""
}

func (p *Publisher) runCompiler() error {
	out, err := p.Console.Run(p.compiler)
	if err != nil {
		utils.Log.Debug().Str("output", out).Str("compiler", p.compiler).Msg("grub config compiler failed")
		return schema.Warning{
			Step:    constants.OpCompileConfig,
			Message: fmt.Sprintf("%s failed: %s", p.compiler, err),
			Remedy:  "run it manually and check its output",
		}
	}
	return nil
}

// Compile runs the grub config compiler. Every failure is returned as a schema.Warning.
func (p *Publisher) Compile() error {
	p.compiler = p.findCompiler()
	if p.compiler == "" {
		return schema.Warning{
			Step:    constants.OpCompileConfig,
			Message: "no grub config compiler found, entries were written but not compiled",
			Remedy:  "install grub and run update-grub or grub-mkconfig",
		}
	}
	utils.Log.Info().Str("compiler", p.compiler).Msg("Compiling grub configuration")
	return p.runCompiler()
}

// CompilerOutput returns the grub configuration a compiler command writes: the -o/--output
// argument, or /boot/grub/grub.cfg for update-grub. Empty when it cannot be told.
func CompilerOutput(compiler string) string {
	fields := strings.Fields(compiler)
	if len(fields) == 0 {
		return ""
	}
	for i, f := range fields[1:] {
		switch {
		case (f == "-o" || f == "--output") && i+2 < len(fields):
			return fields[i+2]
		case strings.HasPrefix(f, "--output="):
			return strings.TrimPrefix(f, "--output=")
		case strings.HasPrefix(f, "-o") && len(f) > 2:
			return strings.TrimPrefix(f[2:], "=")
		}
	}
	switch filepath.Base(fields[0]) {
	case "update-grub", "update-grub2":
		return "/boot/grub/grub.cfg"
	}
	return ""
}

// PrimaryConfig returns the grub configuration written by the compiler that ran. Without one,
// or when its output is unknown, it is the first configuration present on disk.
func (p *Publisher) PrimaryConfig() string {
	if out := CompilerOutput(p.compiler); out != "" {
		return out
	}
	for _, c := range p.GrubConfigs {
		if utils.Exists(p.FS, c) {
			return c
		}
	}
	return ""
}

func (p *Publisher) secureBoot() bool {
	if p.SecureBoot != nil {
		return p.SecureBoot()
	}
	return efi.GetSecureBoot()
}

// Mirror copies the primary config into the first EFI vendor directory found.
// Nothing to do when there is no such directory.
func (p *Publisher) Mirror() error {
	p.mirrored = ""
	var vendorDir string
	for _, v := range p.EFIVendors {
		dir := filepath.Join(p.EFIDir, v)
		if fi, err := p.FS.Stat(dir); err == nil && fi.IsDir() {
			vendorDir = dir
			break
		}
	}
	if vendorDir == "" {
		utils.Log.Debug().Str("dir", p.EFIDir).Msg("No EFI vendor directory, not mirroring")
		return nil
	}

	primary := p.PrimaryConfig()
	if primary == "" || !utils.Exists(p.FS, primary) {
		return schema.Warning{
			Step:    constants.OpMirrorConfig,
			Message: "no grub configuration found to mirror into " + vendorDir,
			Remedy:  "run the grub config compiler",
		}
	}
	content, err := p.FS.ReadFile(primary)
	if err != nil {
		return err
	}
	target := filepath.Join(vendorDir, "grub.cfg")
	if err := p.FS.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("mirroring to %s: %w", target, err)
	}
	p.mirrored = target

	if p.secureBoot() {
		utils.Log.Warn().Msg("Secure Boot is enabled, snapshot kernels must be signed to boot")
	}
	utils.Log.Info().Str("from", primary).Str("to", target).Msg("Mirrored grub configuration")
	return nil
}

func (p *Publisher) checkMarker() error {
	var errs error
	targets := []string{p.PrimaryConfig()}
	if p.mirrored != "" {
		targets = append(targets, p.mirrored)
	}
	for _, t := range targets {
		if t == "" {
			errs = multierror.Append(errs, errors.New("no grub configuration present"))
			continue
		}
		content, err := p.FS.ReadFile(t)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !strings.Contains(string(content), constants.EntriesMarker) {
			errs = multierror.Append(errs, fmt.Errorf("%s does not contain the boot entries", t))
		}
	}
	return errs
}

// Verify checks the compiled configs contain the entries. A missing marker triggers one
// more compile and mirror before giving up with a warning.
func (p *Publisher) Verify() error {
	if p.compiler == "" {
		utils.Log.Debug().Msg("No compiler ran, skipping verification")
		return nil
	}

	attempt := 0
	err := retry.Do(func() error {
		attempt++
		if attempt > 1 {
			utils.Log.Info().Str("compiler", p.compiler).Msg("Boot entries missing from grub configuration, compiling again")
			if err := p.runCompiler(); err != nil {
				return err
			}
			if p.mirrored != "" {
				if err := p.Mirror(); err != nil {
					return err
				}
			}
		}
		return p.checkMarker()
	}, retry.Attempts(2), retry.Delay(100*time.Millisecond), retry.LastErrorOnly(true))

	if err != nil {
		return schema.Warning{
			Step:    constants.OpVerifyConfig,
			Message: fmt.Sprintf("grub configuration verification failed: %s", err),
			Remedy:  "check " + p.EntriesFile + " and run the grub config compiler manually",
		}
	}
	return nil
}
