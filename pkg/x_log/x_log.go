// Package x_log configures the zerolog global logger for the controller:
// a styled console stream for operators plus an optional rotated file sink.
package x_log

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

//
// ---------- Init ----------

// Init sets up the global logger with default config.
func Init() {
	cfg := defaultConfig
	InitWithConfig(&cfg, "")
}

// InitWithConfig sets up the global logger from cfg. Missing fields are
// filled from defaults. module, when non-empty, is attached to every line.
func InitWithConfig(cfg *Config, module string) {
	applyDefaults(cfg)
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var writers []io.Writer
	if cfg.ToConsole {
		writers = append(writers, consoleWriter(cfg))
	}
	if cfg.ToFile {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	var out io.Writer = io.Discard
	if len(writers) == 1 {
		out = writers[0]
	} else if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(out).With().Timestamp()
	if module != "" {
		ctx = ctx.Str("module", module)
	}
	log.Logger = ctx.Logger()
}

// consoleWriter picks the styled writer on a terminal, plain otherwise.
func consoleWriter(cfg *Config) io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		styles := DefaultStylesByName(cfg.Style)
		styles.Out = os.Stderr
		return ConsoleWriterWithStyles(styles)
	}
	return zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

//
// ---------- Scoped and global loggers ----------

// New returns a logger scoped to a module name.
func New(module string) zerolog.Logger {
	return log.Logger.With().Str("module", module).Logger()
}

// Debug starts a debug event on the global logger.
func Debug() *zerolog.Event { return log.Logger.Debug() }

// Info starts an info event on the global logger.
func Info() *zerolog.Event { return log.Logger.Info() }

// Warn starts a warn event on the global logger.
func Warn() *zerolog.Event { return log.Logger.Warn() }

// Error starts an error event on the global logger.
func Error() *zerolog.Event { return log.Logger.Error() }
