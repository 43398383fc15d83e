// Package config defines the configuration surface of a topology: branch
// gains, the shared target sample rate, socket endpoints and the
// timeout/backoff bounds of the socket adapters. All values are fixed at
// process start, there is no runtime reconfiguration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/gain"
)

// Node types understood by the topology builder.
const (
	TypeSource   = "source"
	TypeGain     = "gain"
	TypeCombiner = "combiner"
	TypeThrottle = "throttle"
	TypeSplit    = "split"
	TypeSink     = "sink"
	TypeWavTap   = "wavtap"
)

// Config is the full configuration of one pipeline process.
type Config struct {
	// SampleRate is the target samples-per-second shared by all throttle
	// stages of the topology.
	SampleRate uemux.SampleRate `yaml:"sample_rate"`
	// NATSURL is the address of the request/reply broker.
	NATSURL string `yaml:"nats_url"`
	// MetricsAddr optionally exposes prometheus metrics over http.
	MetricsAddr string `yaml:"metrics_addr"`

	Source SourceConfig `yaml:"source"`
	Sink   SinkConfig   `yaml:"sink"`

	Nodes []Node `yaml:"nodes"`
	Edges []Edge `yaml:"edges"`
}

// SourceConfig bounds the request/reply discipline of all source adapters.
type SourceConfig struct {
	Timeout Duration `yaml:"timeout"`
	// Retries is a pointer so that an explicit zero survives defaulting:
	// nil means unset, zero disables retrying.
	Retries *int     `yaml:"retries"`
	Backoff Duration `yaml:"backoff"`
}

// SinkConfig tunes all publish sink adapters.
type SinkConfig struct {
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Node is one typed stage of the topology.
type Node struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// Subject is the socket endpoint, required for source and sink nodes.
	Subject string `yaml:"subject"`
	// Gain is the scaling coefficient, required for gain nodes.
	Gain uemux.Gain `yaml:"gain"`
	// Path is the output file, required for wavtap nodes.
	Path string `yaml:"path"`
}

// Edge connects the output of From to the input of To.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Duration is a time.Duration decoded from its string form.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default holds the values applied for omitted fields.
var Default = Config{
	NATSURL: "nats://127.0.0.1:4222",
	Source: SourceConfig{
		Timeout: Duration(500 * time.Millisecond),
		Retries: intPtr(5),
		Backoff: Duration(100 * time.Millisecond),
	},
	Sink: SinkConfig{
		IdleTimeout: Duration(5 * time.Second),
	},
}

func intPtr(v int) *int {
	return &v
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration from yaml bytes.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.NATSURL == "" {
		c.NATSURL = Default.NATSURL
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = Default.Source.Timeout
	}
	if c.Source.Retries == nil {
		c.Source.Retries = intPtr(*Default.Source.Retries)
	}
	if c.Source.Backoff <= 0 {
		c.Source.Backoff = Default.Source.Backoff
	}
	if c.Sink.IdleTimeout <= 0 {
		c.Sink.IdleTimeout = Default.Sink.IdleTimeout
	}
}

// Validate checks field-level invariants. Structural topology checks
// happen when the flow graph is built.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Source.Retries != nil && *c.Source.Retries < 0 {
		return fmt.Errorf("source retries must not be negative, got %d", *c.Source.Retries)
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("topology has no nodes")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node without a name")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
		switch n.Type {
		case TypeSource, TypeSink:
			if n.Subject == "" {
				return fmt.Errorf("node %q: %s requires a subject", n.Name, n.Type)
			}
		case TypeGain:
			if !gain.New(n.Gain).Valid() {
				return fmt.Errorf("node %q: gain must be finite", n.Name)
			}
		case TypeWavTap:
			if n.Path == "" {
				return fmt.Errorf("node %q: wavtap requires a path", n.Name)
			}
		case TypeCombiner, TypeThrottle, TypeSplit:
		default:
			return fmt.Errorf("node %q: unknown type %q", n.Name, n.Type)
		}
	}
	for _, e := range c.Edges {
		if !seen[e.From] {
			return fmt.Errorf("edge references unknown node %q", e.From)
		}
		if !seen[e.To] {
			return fmt.Errorf("edge references unknown node %q", e.To)
		}
	}
	return nil
}
