package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/wippyai/go-rados/errors"
)

// EnvPrefix is the prefix of every environment variable LoadFromEnv reads.
const EnvPrefix = "RADOS_"

// Config is the configuration of the command line tool and of embedders that
// want the same knobs.
type Config struct {
	Cluster   ClusterConfig   `yaml:"cluster"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Buffer    BufferConfig    `yaml:"buffer"`
}

// ClusterConfig selects the cluster and the identity to connect as.
type ClusterConfig struct {
	Options  map[string]string `yaml:"options"`
	Name     string            `yaml:"name"`
	User     string            `yaml:"user"`
	ConfFile string            `yaml:"conf_file"`
	Pool     string            `yaml:"pool"`
}

// SimulatorConfig configures the in-process cluster.
type SimulatorConfig struct {
	StorePath string        `yaml:"store_path"`
	FSID      string        `yaml:"fsid"`
	Latency   time.Duration `yaml:"latency"`
	SafeDelay time.Duration `yaml:"safe_delay"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen  string `yaml:"listen"`
	Enabled bool   `yaml:"enabled"`
}

// BufferConfig tunes output buffer sizing. InitialSize below zero keeps the
// per-call defaults; MaxSize zero leaves growth unbounded.
type BufferConfig struct {
	InitialSize int `yaml:"initial_size"`
	MaxSize     int `yaml:"max_size"`
}

var validLevels = []string{"debug", "info", "warn", "error"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Name:    "ceph",
			User:    "client.admin",
			Pool:    "data",
			Options: map[string]string{},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9283",
		},
		Buffer: BufferConfig{
			InitialSize: -1,
		},
	}
}

// LoadFromFile merges a YAML file over c. Keys missing from the file keep
// their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config file")
	}
	return nil
}

// LoadFromEnv applies RADOS_* environment variables over c. Malformed
// numbers and durations are reported rather than ignored.
func (c *Config) LoadFromEnv() error {
	str := func(name string, dst *string) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			*dst = val
		}
	}
	str("CLUSTER", &c.Cluster.Name)
	str("USER", &c.Cluster.User)
	str("CONF", &c.Cluster.ConfFile)
	str("POOL", &c.Cluster.Pool)
	str("SIM_STORE", &c.Simulator.StorePath)
	str("SIM_FSID", &c.Simulator.FSID)
	str("LOG_LEVEL", &c.Logging.Level)
	str("METRICS_LISTEN", &c.Metrics.Listen)

	if val := os.Getenv(EnvPrefix + "LOG_DEVELOPMENT"); val != "" {
		c.Logging.Development = strings.EqualFold(val, "true")
	}
	if val := os.Getenv(EnvPrefix + "METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.EqualFold(val, "true")
	}

	durations := []struct {
		dst  *time.Duration
		name string
	}{
		{&c.Simulator.Latency, "SIM_LATENCY"},
		{&c.Simulator.SafeDelay, "SIM_SAFE_DELAY"},
	}
	for _, d := range durations {
		val := os.Getenv(EnvPrefix + d.name)
		if val == "" {
			continue
		}
		v, err := time.ParseDuration(val)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, EnvPrefix+d.name)
		}
		*d.dst = v
	}

	ints := []struct {
		dst  *int
		name string
	}{
		{&c.Buffer.InitialSize, "BUFFER_INITIAL"},
		{&c.Buffer.MaxSize, "BUFFER_MAX"},
	}
	for _, n := range ints {
		val := os.Getenv(EnvPrefix + n.name)
		if val == "" {
			continue
		}
		v, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, EnvPrefix+n.name)
		}
		*n.dst = v
	}
	return nil
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail(format, args...).Build()
	}

	if c.Cluster.Pool == "" {
		return invalid("cluster.pool must not be empty")
	}
	if c.Simulator.Latency < 0 || c.Simulator.SafeDelay < 0 {
		return invalid("simulator delays must not be negative")
	}
	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, l := range validLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		return invalid("invalid logging.level %q (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics are enabled")
	}
	if c.Buffer.MaxSize < 0 {
		return invalid("buffer.max_size must not be negative")
	}
	if c.Buffer.MaxSize > 0 && c.Buffer.InitialSize > c.Buffer.MaxSize {
		return invalid("buffer.initial_size %d exceeds buffer.max_size %d", c.Buffer.InitialSize, c.Buffer.MaxSize)
	}
	return nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "write config file")
	}
	return nil
}

// Logger builds the zap logger the logging section describes.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "logging.level")
	}

	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
