package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger writes human-readable lines for commands.
	CLILogger *logging.Logger

	// ServerLogger writes JSON entries for the status server.
	ServerLogger *logging.Logger
)

// ServerLogOptions selects how the server logger is built.
type ServerLogOptions struct {
	Service   string
	Level     string // trace, debug, info, warn, error
	Profile   string // simple or structured
	Namespace string
}

// InitCLILogger installs the CLI logger. verbose lowers the level to DEBUG.
func InitCLILogger(serviceName string, verbose bool) error {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		return fmt.Errorf("init cli logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
	return nil
}

// InitServerLogger installs the server logger described by opts.
func InitServerLogger(opts ServerLogOptions) error {
	logger, err := logging.New(ServerLoggerConfig(opts))
	if err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}
	ServerLogger = logger
	return nil
}

// ServerLoggerConfig maps opts onto a gofulmen logger config. The structured
// profile emits JSON with correlation IDs; the simple profile emits console
// lines for local runs.
func ServerLoggerConfig(opts ServerLogOptions) *logging.LoggerConfig {
	static := map[string]any{}
	if opts.Namespace != "" {
		static["namespace"] = opts.Namespace
	}

	cfg := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: NormalizeLevel(opts.Level),
		Service:      opts.Service,
		Environment:  "production",
		StaticFields: static,
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "json",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		Middleware: []logging.MiddlewareConfig{{
			Name:    "correlation",
			Enabled: true,
			Order:   100,
			Config:  map[string]any{},
		}},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	if strings.EqualFold(strings.TrimSpace(opts.Profile), "simple") {
		cfg.Profile = logging.ProfileSimple
		cfg.Environment = "development"
		cfg.Sinks[0].Format = "console"
		cfg.Middleware = nil
		cfg.EnableStacktrace = false
	}
	return cfg
}

// NormalizeLevel maps a config level onto gofulmen severity names; unknown
// values fall back to INFO.
func NormalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger returns the server logger when one is initialized, else the CLI logger.
// It may return nil.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}
