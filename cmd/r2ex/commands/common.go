package commands

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Global carries the process streams into commands.
type Global struct {
	In  io.Reader
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Optional YAML configuration file" env:"R2EX_CONFIG" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `help:"Log output format" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon   DaemonCmd   `cmd:"" help:"Serve ingress, run workflows and send notifications"`
	Trigger  TriggerCmd  `cmd:"" help:"Handle one branch reference update event"`
	Job      JobCmd      `cmd:"" help:"Dispatch a build command or query its status"`
	Workflow WorkflowCmd `cmd:"" help:"Run one build execution end to end"`
	Notify   NotifyCmd   `cmd:"" help:"Send the report for one finished pipeline execution"`
	Cfg      ConfigCmd   `cmd:"" name:"config" help:"Inspect configuration"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(newLogger(config.LogFormat(c.LogFormat), level))
	return nil
}

func newLogger(format config.LogFormat, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// loadConfig loads configuration and checks the settings roles depend on.
// The configured log level applies unless --verbose was given.
func (c *CLI) loadConfig(roles ...config.Role) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(roles...); err != nil {
		return nil, err
	}
	if !c.Verbose {
		format := cfg.Logging.Format
		if c.LogFormat == string(config.LogFormatJSON) {
			format = config.LogFormatJSON
		}
		slog.SetDefault(newLogger(format, slogLevel(cfg.Logging.Level)))
	}
	return cfg, nil
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// readEvent returns the event file content, or stdin when none was given.
func readEvent(g *Global, content []byte) ([]byte, error) {
	if len(content) > 0 {
		return content, nil
	}
	data, err := io.ReadAll(g.In)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "failed to read event from stdin").Build()
	}
	if len(data) == 0 {
		return nil, ferrors.ValidationError("no event given").Build()
	}
	return data, nil
}

func writeJSON(g *Global, v any) error {
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
