package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kairos-io/btrsnap/internal/constants"
	"github.com/kairos-io/kairos-sdk/types"
	"github.com/rs/zerolog"
)

// Log is the logger used across btrsnap. It is replaced by SetLogger on startup.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// KLog is the generic KairosLogger that we pass to yip calls
var KLog types.KairosLogger

func SetLogger(debug bool) {
	level := "info"

	debugFromEnv := os.Getenv("BTRSNAP_DEBUG") != ""
	if debug || debugFromEnv {
		level = "debug"
	}

	KLog = NewLogger(level, constants.LogDir)
	Log = KLog.Logger
}

// NewLogger returns a KairosLogger that also appends to btrsnap.log in logDir.
// The console keeps working when logDir cannot be written.
func NewLogger(level, logDir string) types.KairosLogger {
	k := types.NewKairosLogger(constants.LogName, level, false)

	_ = os.MkdirAll(logDir, os.ModeDir|os.ModePerm)
	f, err := os.OpenFile(filepath.Join(logDir, constants.LogName+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return k
	}
	console := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.TimeFormat = time.RFC3339
	})
	file := zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true}
	k.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger().Level(k.GetLevel())
	return k
}
