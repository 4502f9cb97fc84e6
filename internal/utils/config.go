package utils

import (
	"fmt"
	"os"

	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads the yaml config at path on top of the defaults, empty values are
// replaced by the defaults too.
// A missing file gives the defaults.
func LoadConfig(fs vfs.FS, path string) (schema.Config, error) {
	cfg := schema.DefaultConfig()

	content, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			Log.Debug().Str("file", path).Msg("No config file, using defaults")
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, schema.NewPreconditionError("invalid config %s: %s", path, err)
	}
	if cfg.Keep < 0 {
		return cfg, schema.NewPreconditionError("invalid config %s: keep must not be negative", path)
	}
	cfg = cfg.Merge(schema.DefaultConfig())
	Log.Debug().Str("file", path).Interface("config", cfg).Msg("Loaded config")
	return cfg, nil
}

// FormatBytes renders a size in binary units.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
