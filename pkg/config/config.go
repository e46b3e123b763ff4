package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the root configuration struct for both producer and consumer
// entrypoints, loaded from YAML with environment overrides and
// defaults.
type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Producer struct {
		Base        string  `yaml:"base_prefix"`
		Identity    string  `yaml:"identity"`
		WireLen     int     `yaml:"wire_len"`
		ParityRatio float64 `yaml:"parity_ratio"`

		MetaFreshnessMs  int `yaml:"meta_freshness_ms"`
		DeltaFreshnessMs int `yaml:"delta_freshness_ms"`
		KeyFreshnessMs   int `yaml:"key_freshness_ms"`

		Threads []struct {
			Name          string  `yaml:"name"`
			SampleRateHz  float64 `yaml:"sample_rate_hz"`
			GopSize       int     `yaml:"gop_size"`
			KeyIntervalMs int     `yaml:"key_interval_ms"`
		} `yaml:"threads"`
	} `yaml:"producer"`

	Consumer struct {
		InterestLifetimeMs int           `yaml:"interest_lifetime_ms"`
		MaxRetransmits     int           `yaml:"max_retransmits"`
		PipelineLowerLimit int           `yaml:"pipeline_lower_limit"`
		PipelineUpperLimit int           `yaml:"pipeline_upper_limit"`
		StarvationTimeout  time.Duration `yaml:"starvation_timeout"`
		JitterTargetMs     int64         `yaml:"jitter_target_ms"`
		MaxWaitForHeadMs   int64         `yaml:"max_wait_for_head_ms"`
	} `yaml:"consumer"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		PrometheusPort    int           `yaml:"prometheus_port"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_endpoint"`
		ServiceName string  `yaml:"service_name"`
		SampleRatio float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Producer
	if c.Producer.Base == "" {
		return fmt.Errorf("producer.base_prefix must not be empty")
	}
	if c.Producer.WireLen <= 0 {
		return fmt.Errorf("producer.wire_len must be > 0")
	}
	if c.Producer.ParityRatio < 0 {
		return fmt.Errorf("producer.parity_ratio must be >= 0")
	}
	for i, th := range c.Producer.Threads {
		if th.Name == "" {
			return fmt.Errorf("producer.threads[%d].name must not be empty", i)
		}
		if th.SampleRateHz <= 0 {
			return fmt.Errorf("producer.threads[%d].sample_rate_hz must be > 0", i)
		}
	}

	// Consumer
	if c.Consumer.InterestLifetimeMs <= 0 {
		return fmt.Errorf("consumer.interest_lifetime_ms must be > 0")
	}
	if c.Consumer.MaxRetransmits < 0 {
		return fmt.Errorf("consumer.max_retransmits must be >= 0")
	}
	if c.Consumer.PipelineLowerLimit <= 0 {
		return fmt.Errorf("consumer.pipeline_lower_limit must be > 0")
	}
	if c.Consumer.PipelineUpperLimit < c.Consumer.PipelineLowerLimit {
		return fmt.Errorf("consumer.pipeline_upper_limit must be >= pipeline_lower_limit")
	}
	if c.Consumer.StarvationTimeout <= 0 {
		return fmt.Errorf("consumer.starvation_timeout must be > 0")
	}
	if c.Consumer.JitterTargetMs <= 0 {
		return fmt.Errorf("consumer.jitter_target_ms must be > 0")
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}
	if c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be within [0,1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.Channel == "" {
			return fmt.Errorf("redis.channel must not be empty when redis.enabled=true")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Producer.Base = "/ndn/rtc"
	cfg.Producer.Identity = "producer"
	cfg.Producer.WireLen = 8000
	cfg.Producer.ParityRatio = 0.2
	cfg.Producer.MetaFreshnessMs = 1000
	cfg.Producer.DeltaFreshnessMs = 2000
	cfg.Producer.KeyFreshnessMs = 5000

	cfg.Consumer.InterestLifetimeMs = 2000
	cfg.Consumer.MaxRetransmits = 3
	cfg.Consumer.PipelineLowerLimit = 2
	cfg.Consumer.PipelineUpperLimit = 30
	cfg.Consumer.StarvationTimeout = 5 * time.Second
	cfg.Consumer.JitterTargetMs = 150
	cfg.Consumer.MaxWaitForHeadMs = 300

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.MetricsInterval = 30 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.ServiceName = "ndnrtc"
	cfg.Tracing.SampleRatio = 0.1

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Channel = "ndnrtc:events"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("NDNRTC_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("NDNRTC_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if base := os.Getenv("NDNRTC_PRODUCER_BASE"); base != "" {
		c.Producer.Base = base
	}
	if identity := os.Getenv("NDNRTC_PRODUCER_IDENTITY"); identity != "" {
		c.Producer.Identity = identity
	}
	if addr := os.Getenv("NDNRTC_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if jaeger := os.Getenv("NDNRTC_JAEGER_ENDPOINT"); jaeger != "" {
		c.Tracing.JaegerURL = jaeger
	}
}
