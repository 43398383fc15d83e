package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uemux/uemux/config"
)

func TestLoad(t *testing.T) {
	cfg, err := config.Load("testdata/multi_ue.yaml")
	require.NoError(t, err)

	assert.EqualValues(t, 32000, cfg.SampleRate)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.Source.Timeout.Std())
	require.NotNil(t, cfg.Source.Retries)
	assert.Equal(t, 5, *cfg.Source.Retries)
	assert.Equal(t, 100*time.Millisecond, cfg.Source.Backoff.Std())
	assert.Equal(t, 5*time.Second, cfg.Sink.IdleTimeout.Std())
	assert.Len(t, cfg.Nodes, 21)
	assert.Len(t, cfg.Edges, 19)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("testdata/absent.yaml")
	assert.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
sample_rate: 16000
nodes:
  - {name: up, type: source, subject: up.iq}
  - {name: out, type: sink, subject: out.iq}
edges:
  - {from: up, to: out}
`))
	require.NoError(t, err)

	assert.Equal(t, config.Default.NATSURL, cfg.NATSURL)
	assert.Equal(t, config.Default.Source.Timeout, cfg.Source.Timeout)
	require.NotNil(t, cfg.Source.Retries)
	assert.Equal(t, *config.Default.Source.Retries, *cfg.Source.Retries)
	assert.Equal(t, config.Default.Source.Backoff, cfg.Source.Backoff)
	assert.Equal(t, config.Default.Sink.IdleTimeout, cfg.Sink.IdleTimeout)
}

// An explicit zero is a valid retry budget and must not be replaced by
// the default.
func TestParseZeroRetries(t *testing.T) {
	cfg, err := config.Parse([]byte(`
sample_rate: 16000
source:
  retries: 0
nodes:
  - {name: up, type: source, subject: up.iq}
  - {name: out, type: sink, subject: out.iq}
edges:
  - {from: up, to: out}
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Source.Retries)
	assert.Equal(t, 0, *cfg.Source.Retries)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "not yaml",
			yaml: `{{`,
		},
		{
			name: "zero sample rate",
			yaml: `
nodes:
  - {name: up, type: source, subject: up.iq}
`,
		},
		{
			name: "no nodes",
			yaml: `sample_rate: 16000`,
		},
		{
			name: "duplicate node",
			yaml: `
sample_rate: 16000
nodes:
  - {name: up, type: source, subject: up.iq}
  - {name: up, type: source, subject: up2.iq}
`,
		},
		{
			name: "source without subject",
			yaml: `
sample_rate: 16000
nodes:
  - {name: up, type: source}
`,
		},
		{
			name: "wavtap without path",
			yaml: `
sample_rate: 16000
nodes:
  - {name: tap, type: wavtap}
`,
		},
		{
			name: "unknown node type",
			yaml: `
sample_rate: 16000
nodes:
  - {name: up, type: resample}
`,
		},
		{
			name: "edge to unknown node",
			yaml: `
sample_rate: 16000
nodes:
  - {name: up, type: source, subject: up.iq}
edges:
  - {from: up, to: nowhere}
`,
		},
		{
			name: "negative retries",
			yaml: `
sample_rate: 16000
source:
  retries: -1
nodes:
  - {name: up, type: source, subject: up.iq}
`,
		},
		{
			name: "non-finite gain",
			yaml: `
sample_rate: 16000
nodes:
  - {name: g, type: gain, gain: .nan}
`,
		},
		{
			name: "bad duration",
			yaml: `
sample_rate: 16000
source:
  timeout: soon
nodes:
  - {name: up, type: source, subject: up.iq}
`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Parse([]byte(test.yaml))
			assert.Error(t, err)
		})
	}
}
