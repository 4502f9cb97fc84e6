package utils

import (
	"os"

	"github.com/mudler/yip/pkg/executor"
	"github.com/twpayne/go-vfs/v4"
)

// StageRunner runs yip stages found in a hooks directory.
type StageRunner struct {
	Dir     string
	Console Console
}

// RunStage runs the given stage from every yip config in the hooks directory.
// A missing hooks directory is not an error.
func (r StageRunner) RunStage(stage string) error {
	if _, err := os.Stat(r.Dir); err != nil {
		Log.Debug().Str("dir", r.Dir).Str("stage", stage).Msg("No hooks directory, skipping stage")
		return nil
	}

	yip := executor.NewExecutor(executor.WithLogger(KLog))
	Log.Info().Str("stage", stage).Msg("Running hooks")
	return yip.Run(stage, vfs.OSFS, r.Console, r.Dir)
}
