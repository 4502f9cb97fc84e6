package state

import (
	"context"
	"errors"

	cnst "github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/grub"
	"github.com/spectrocloud-labs/herd"
)

var errMissingInput = errors.New("previous step did not produce its result")

// ScanSnapshotsDagStep reads the snapshots from the volume.
func (s *State) ScanSnapshotsDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpScanSnapshots,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			snaps, err := s.Snapshots.List()
			if err != nil {
				return err
			}
			s.snapshots = snaps
			utils.Log.Debug().Int("count", len(snaps)).Msg("Scanned snapshots")
			return nil
		}))...)
}

// DetectTopologyDagStep classifies the boot layout.
func (s *State) DetectTopologyDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpDetectTopology,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			t, err := s.Detector.Detect()
			if err != nil {
				return err
			}
			s.topology = t
			return nil
		}))...)
}

// ResolveKernelDagStep finds the kernel and initrd. It never fails, unresolved
// artifacts end up as warnings.
func (s *State) ResolveKernelDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpResolveKernel,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			k, warnings := s.Resolver.Resolve(s.kernelVersion())
			for _, w := range warnings {
				s.AddWarning(w)
			}
			s.kernel = &k
			return nil
		}))...)
}

// SynthesizeEntriesDagStep builds one boot entry per snapshot.
func (s *State) SynthesizeEntriesDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpSynthesizeEntries,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			if s.snapshots == nil || s.topology == nil || s.kernel == nil {
				return errMissingInput
			}
			s.entries = s.Synth.Entries(s.snapshots, s.topology, *s.kernel, s.Synth.KernelArgs())
			if len(s.entries) != len(s.snapshots) {
				return errors.New("boot entries do not match the snapshots")
			}
			return nil
		}))...)
}

// WriteEntriesDagStep rewrites the entries file.
func (s *State) WriteEntriesDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpWriteEntries,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			if s.entries == nil {
				return errMissingInput
			}
			if err := s.Publisher.WriteEntries(grub.Fragment(s.entries)); err != nil {
				return err
			}
			s.written = true
			return nil
		}))...)
}

// CompileConfigDagStep runs the grub config compiler.
func (s *State) CompileConfigDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCompileConfig,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			if !s.written {
				return errMissingInput
			}
			return s.Publisher.Compile()
		}))...)
}

// MirrorConfigDagStep copies the compiled config into the EFI vendor directory.
func (s *State) MirrorConfigDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpMirrorConfig,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			if !s.written {
				return errMissingInput
			}
			return s.Publisher.Mirror()
		}))...)
}

// VerifyConfigDagStep checks the compiled configs contain the entries.
func (s *State) VerifyConfigDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpVerifyConfig,
		append(opts, herd.WithCallback(func(_ context.Context) error {
			if !s.written {
				return errMissingInput
			}
			return s.Publisher.Verify()
		}))...)
}
