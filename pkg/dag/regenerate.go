package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	cnst "github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/kairos-io/btrsnap/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterRegeneration registers the dag that rebuilds the boot entries from the snapshots
// on disk. Each step depends on the previous one so they run one at a time, the last two are
// best-effort and run even if compiling failed. herd checks dependencies transitively, so every
// best-effort step upstream of another one has to be listed as a weak dependency.
func RegisterRegeneration(s *state.State, g *herd.Graph) error {
	var err error

	if err = s.LogIfErrorAndReturn(s.ScanSnapshotsDagStep(g), "scan snapshots"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.DetectTopologyDagStep(g, herd.WithDeps(cnst.OpScanSnapshots)), "detect topology"); err != nil {
		return err
	}
	s.LogIfError(s.ResolveKernelDagStep(g, herd.WithDeps(cnst.OpDetectTopology)), "resolve kernel")

	// Kernel resolution only produces warnings, never block on it
	if err = s.LogIfErrorAndReturn(s.SynthesizeEntriesDagStep(g,
		herd.WithDeps(cnst.OpDetectTopology),
		herd.WithWeakDeps(cnst.OpResolveKernel)), "synthesize entries"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.WriteEntriesDagStep(g, herd.WithDeps(cnst.OpSynthesizeEntries)), "write entries"); err != nil {
		return err
	}

	s.LogIfError(s.CompileConfigDagStep(g, herd.WithDeps(cnst.OpWriteEntries)), "compile config")
	s.LogIfError(s.MirrorConfigDagStep(g, herd.WithDeps(cnst.OpWriteEntries), herd.WithWeakDeps(cnst.OpCompileConfig)), "mirror config")
	s.LogIfError(s.VerifyConfigDagStep(g, herd.WithDeps(cnst.OpWriteEntries), herd.WithWeakDeps(cnst.OpCompileConfig, cnst.OpMirrorConfig)), "verify config")
	return err
}

// Regenerator runs a full regeneration pass over a State.
type Regenerator struct {
	State *state.State
}

// Regenerate rebuilds the entries file and the grub configuration. Failures of fatal steps
// are returned, best-effort failures are kept as warnings on the State.
func (r *Regenerator) Regenerate(ctx context.Context) error {
	s := r.State
	s.Reset()

	g := herd.DAG(herd.EnableInit)
	if err := RegisterRegeneration(s, g); err != nil {
		return err
	}

	runErr := g.Run(ctx)
	utils.Log.Debug().Msg(s.WriteDAG(g))

	var fatal error
	failed := false
	for _, layer := range g.Analyze() {
		for _, op := range layer {
			// ops skipped because a dependency failed carry herd's "deps failed" error,
			// the failing dependency is reported on its own
			if op.Error == nil || !op.Executed {
				continue
			}
			failed = true
			policy, ok := cnst.StepPolicies[op.Name]
			if ok && policy == cnst.BestEffort {
				s.AddWarning(asWarning(op.Name, op.Error))
				continue
			}
			fatal = multierror.Append(fatal, fmt.Errorf("%s: %w", op.Name, op.Error))
		}
	}
	if fatal != nil {
		return fatal
	}
	if !failed && runErr != nil {
		return runErr
	}

	utils.Log.Info().Int("entries", len(s.Entries())).Int("warnings", len(s.Warnings)).Msg("Boot entries regenerated")
	return nil
}

func asWarning(step string, err error) schema.Warning {
	var w schema.Warning
	if errors.As(err, &w) {
		return w
	}
	return schema.Warning{Step: step, Message: err.Error()}
}
