package tracehop

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kzs0/tracehop/config"
	"github.com/kzs0/tracehop/log"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "TRACEHOP_"

// Config configures a Runtime.
type Config struct {
	// Service is the name of the service.
	Service string `env:"SERVICE" envDefault:"tracehop" yaml:"service"`

	// Propagators lists the carrier formats, in extraction order:
	// tracecontext, jaeger, otel.
	Propagators []string `env:"PROPAGATORS" envDefault:"tracecontext" yaml:"propagators"`

	// Tracing configuration
	// TraceURL is the OTLP HTTP endpoint for traces. Empty disables export.
	TraceURL string `env:"TRACE_URL" yaml:"trace_url"`
	// TraceSampleRate is the ratio of new traces that are sampled (0.0 to 1.0).
	// Nil samples every trace; 0 samples none.
	TraceSampleRate *float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0" yaml:"trace_sample_rate"`
	// TraceLog logs every finished span.
	TraceLog bool `env:"TRACE_LOG" envDefault:"false" yaml:"trace_log"`

	// Logging configuration
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	// LogFormat is "json" or "text".
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" yaml:"log_format"`
	// LogOutput is the log output writer. Defaults to os.Stderr.
	LogOutput io.Writer `env:"-" yaml:"-"`

	// ShutdownTimeout bounds Runtime.Shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Service:         "tracehop",
		Propagators:     []string{PropagatorTraceContext},
		TraceSampleRate: SampleRate(1.0),
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 30 * time.Second,
	}
}

// SampleRate returns a pointer to rate for Config.TraceSampleRate.
func SampleRate(rate float64) *float64 {
	return &rate
}

// FromEnv loads configuration from TRACEHOP_ environment variables, layered
// over the YAML file named by TRACEHOP_CONFIG when it is set.
func FromEnv() (Config, error) {
	return Load(os.Getenv(EnvPrefix + "CONFIG"))
}

// Load loads configuration from the YAML file at path, then from the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg, err := config.Load[Config](EnvPrefix, path)
	if err != nil {
		return Config{}, fmt.Errorf("tracehop: failed to load config: %w", err)
	}
	return cfg, nil
}

// MustFromEnv loads configuration from the environment, panicking on error.
func MustFromEnv() Config {
	cfg, err := FromEnv()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c Config) logLevel() (slog.Level, error) {
	return log.ParseLevel(c.LogLevel)
}
