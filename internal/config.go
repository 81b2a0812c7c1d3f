package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"

	DefaultQueueSize = 4096
	DefaultRedisTTL  = 24 * time.Hour
	DefaultLogLevel  = "info"
)

var dedupBackends = []string{DedupBackendMemory, DedupBackendRedis}

// Config holds everything a run can be tuned with. It is filled from
// NewConfig, then an optional YAML file, then command-line flags.
type Config struct {
	// output
	Bytes  bool   `yaml:"bytes"`
	Metric bool   `yaml:"metric"`
	Unit   string `yaml:"unit"`

	// walking
	OneFileSystem bool `yaml:"one-file-system"`
	SkipErrors    bool `yaml:"skip-errors"`

	// pipeline
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue-size"`

	DedupBackend string        `yaml:"dedup-backend"`
	RedisAddr    string        `yaml:"redis-addr"`
	RedisTTL     time.Duration `yaml:"redis-ttl"`

	LogLevel string `yaml:"loglevel"`
	LogDir   string `yaml:"logdir"`
}

func NewConfig() *Config {
	return &Config{
		Workers:      DefaultWorkers(),
		QueueSize:    DefaultQueueSize,
		DedupBackend: DedupBackendMemory,
		RedisTTL:     DefaultRedisTTL,
		LogLevel:     DefaultLogLevel,
	}
}

// DefaultWorkers is the number of CPUs, kept within [4, 16].
func DefaultWorkers() int {
	return min(max(runtime.NumCPU(), 4), 16)
}

// LoadConfigFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current value.
func (c *Config) LoadConfigFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// an empty file decodes to io.EOF
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue-size must be at least 1, got %d", c.QueueSize)
	}
	if !StringContains(dedupBackends, c.DedupBackend) {
		return fmt.Errorf("unknown dedup-backend %q, want one of %s", c.DedupBackend, strings.Join(dedupBackends, ", "))
	}
	if c.DedupBackend == DedupBackendRedis && c.RedisAddr == "" {
		return errors.New("dedup-backend redis needs redis-addr")
	}
	if c.RedisTTL < 0 {
		return fmt.Errorf("redis-ttl must not be negative, got %s", c.RedisTTL)
	}
	if c.Unit != "" {
		if c.Bytes {
			return errors.New("bytes and unit are mutually exclusive")
		}
		if len(c.Unit) != 1 || !strings.ContainsAny(strings.ToUpper(c.Unit), "KMGTPE") {
			return fmt.Errorf("invalid unit %q, want one of K M G T P E", c.Unit)
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
