package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock takes an exclusive advisory lock on path, blocking until it is available.
// The returned function releases it.
func Lock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		Log.Info().Str("lock", path).Msg("Another btrsnap is running, waiting for it to finish")
		if err := fl.Lock(); err != nil {
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			Log.Debug().Err(err).Str("lock", path).Msg("releasing lock")
		}
	}, nil
}
