package config

import (
	"testing"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.Producer.Threads = append(cfg.Producer.Threads, struct {
		Name          string  `yaml:"name"`
		SampleRateHz  float64 `yaml:"sample_rate_hz"`
		GopSize       int     `yaml:"gop_size"`
		KeyIntervalMs int     `yaml:"key_interval_ms"`
	}{Name: "hi", SampleRateHz: 30, GopSize: 30})
	return cfg
}

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestValidate_TracingDisabled_AllowsEmptyEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when tracing disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "producer base must not be empty",
			mutate: func(c *Config) {
				c.Producer.Base = ""
			},
		},
		{
			name: "producer wire len must be > 0",
			mutate: func(c *Config) {
				c.Producer.WireLen = 0
			},
		},
		{
			name: "producer parity ratio must be >= 0",
			mutate: func(c *Config) {
				c.Producer.ParityRatio = -0.1
			},
		},
		{
			name: "producer thread sample rate must be > 0",
			mutate: func(c *Config) {
				c.Producer.Threads[0].SampleRateHz = 0
			},
		},
		{
			name: "consumer pipeline upper limit must be >= lower",
			mutate: func(c *Config) {
				c.Consumer.PipelineLowerLimit = 10
				c.Consumer.PipelineUpperLimit = 5
			},
		},
		{
			name: "consumer starvation timeout must be > 0",
			mutate: func(c *Config) {
				c.Consumer.StarvationTimeout = 0
			},
		},
		{
			name: "monitoring prometheus port required when enabled",
			mutate: func(c *Config) {
				c.Monitoring.PrometheusEnabled = true
				c.Monitoring.PrometheusPort = 0
			},
		},
		{
			name: "tracing jaeger endpoint required when enabled",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.JaegerURL = ""
			},
		},
		{
			name: "tracing sample ratio must be within [0,1]",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.JaegerURL = "http://localhost:14268"
				c.Tracing.SampleRatio = 1.5
			},
		},
		{
			name: "redis channel required when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Channel = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}
