package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Detection  DetectionConfig  `yaml:"detection"`
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
	Suspicion  SuspicionConfig  `yaml:"suspicion"`
	Storage    StorageConfig    `yaml:"storage"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	MetricsPort     string `yaml:"metrics_port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSec int    `yaml:"write_timeout_seconds"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Band holds the cutoffs for one metric. NormalLow/NormalHigh are only
// used for the human-readable expected-range message.
type Band struct {
	CriticalHigh float64 `yaml:"critical_high"`
	CriticalLow  float64 `yaml:"critical_low"`
	WarningHigh  float64 `yaml:"warning_high"`
	WarningLow   float64 `yaml:"warning_low"`
	NormalLow    float64 `yaml:"normal_low"`
	NormalHigh   float64 `yaml:"normal_high"`
}

type ThresholdsConfig struct {
	Temperature Band `yaml:"temperature"`
	Humidity    Band `yaml:"humidity"`
}

type DetectionConfig struct {
	TrendWindowMinutes    int     `yaml:"trend_window_minutes"`
	TrendHistoryCap       int     `yaml:"trend_history_cap"`
	TrendTempDelta        float64 `yaml:"trend_temperature_delta"`
	TrendHumidityDelta    float64 `yaml:"trend_humidity_delta"`
	PatternWindowMinutes  int     `yaml:"pattern_window_minutes"`
	TrainingWindowDays    int     `yaml:"training_window_days"`
	MinTrainingSize       int     `yaml:"min_training_size"`
	RetrainIntervalHours  int     `yaml:"retrain_interval_hours"`
	FloodReadingsPerMin   int     `yaml:"flood_readings_per_minute"`
	AuditSampleSize       int     `yaml:"audit_sample_size"`
}

// EndpointLimit is one (limit, window) pair of the rate-limit table.
type EndpointLimit struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (e EndpointLimit) Window() time.Duration {
	return time.Duration(e.WindowSeconds) * time.Second
}

type RateLimitsConfig struct {
	Endpoints map[string]EndpointLimit `yaml:"endpoints"`
	Default   EndpointLimit            `yaml:"default"`
}

type SuspicionConfig struct {
	BlockThreshold       int `yaml:"block_threshold"`
	FailedLoginWarn      int `yaml:"failed_login_warn"`
	FailedLoginBlock     int `yaml:"failed_login_block"`
	ScanThreshold        int `yaml:"scan_threshold"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	BlockTTLMinutes      int `yaml:"block_ttl_minutes"` // 0 = blocks never expire
}

type StorageConfig struct {
	MaxReadings int `yaml:"max_readings"`
	MaxEvents   int `yaml:"max_events"`
	MaxAlerts   int `yaml:"max_alerts"`
	MaxAuditLog int `yaml:"max_audit_log"`
}

func Load(filename string) (*Config, error) {
	if filename == "" {
		filename = "configs/sentinel.yaml"
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %v", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return &config, nil
}

// Validate fills zero values with defaults and rejects inconsistent bands.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MetricsPort == "" {
		c.Server.MetricsPort = "9090"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 15
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	zero := Band{}
	if c.Thresholds.Temperature == zero {
		c.Thresholds.Temperature = defaultTemperatureBand()
	}
	if c.Thresholds.Humidity == zero {
		c.Thresholds.Humidity = defaultHumidityBand()
	}
	if c.Thresholds.Temperature.CriticalHigh <= c.Thresholds.Temperature.WarningHigh {
		return fmt.Errorf("temperature critical_high must exceed warning_high")
	}
	if c.Thresholds.Humidity.CriticalHigh <= c.Thresholds.Humidity.WarningHigh {
		return fmt.Errorf("humidity critical_high must exceed warning_high")
	}

	if c.Detection.TrendWindowMinutes <= 0 {
		c.Detection.TrendWindowMinutes = 10
	}
	if c.Detection.TrendHistoryCap <= 0 {
		c.Detection.TrendHistoryCap = 5
	}
	if c.Detection.TrendTempDelta <= 0 {
		c.Detection.TrendTempDelta = 15.0
	}
	if c.Detection.TrendHumidityDelta <= 0 {
		c.Detection.TrendHumidityDelta = 30.0
	}
	if c.Detection.PatternWindowMinutes <= 0 {
		c.Detection.PatternWindowMinutes = 60
	}
	if c.Detection.TrainingWindowDays <= 0 {
		c.Detection.TrainingWindowDays = 30
	}
	if c.Detection.MinTrainingSize <= 0 {
		c.Detection.MinTrainingSize = 100
	}
	if c.Detection.RetrainIntervalHours <= 0 {
		c.Detection.RetrainIntervalHours = 24
	}
	if c.Detection.FloodReadingsPerMin <= 0 {
		c.Detection.FloodReadingsPerMin = 20
	}
	if c.Detection.AuditSampleSize <= 0 {
		c.Detection.AuditSampleSize = 10
	}

	if c.RateLimits.Endpoints == nil {
		c.RateLimits.Endpoints = defaultEndpointLimits()
	}
	if c.RateLimits.Default.Limit <= 0 {
		c.RateLimits.Default = EndpointLimit{Limit: 100, WindowSeconds: 60}
	}
	for endpoint, limit := range c.RateLimits.Endpoints {
		if limit.Limit <= 0 || limit.WindowSeconds <= 0 {
			return fmt.Errorf("rate limit for %s must have positive limit and window", endpoint)
		}
	}

	if c.Suspicion.BlockThreshold <= 0 {
		c.Suspicion.BlockThreshold = 5
	}
	if c.Suspicion.FailedLoginWarn <= 0 {
		c.Suspicion.FailedLoginWarn = 5
	}
	if c.Suspicion.FailedLoginBlock <= 0 {
		c.Suspicion.FailedLoginBlock = 10
	}
	if c.Suspicion.ScanThreshold <= 0 {
		c.Suspicion.ScanThreshold = 20
	}
	if c.Suspicion.SweepIntervalSeconds <= 0 {
		c.Suspicion.SweepIntervalSeconds = 60
	}
	if c.Suspicion.BlockTTLMinutes < 0 {
		c.Suspicion.BlockTTLMinutes = 0
	}

	if c.Storage.MaxReadings <= 0 {
		c.Storage.MaxReadings = 100000
	}
	if c.Storage.MaxEvents <= 0 {
		c.Storage.MaxEvents = 10000
	}
	if c.Storage.MaxAlerts <= 0 {
		c.Storage.MaxAlerts = 10000
	}
	if c.Storage.MaxAuditLog <= 0 {
		c.Storage.MaxAuditLog = 50000
	}

	return nil
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	config := &Config{}
	_ = config.Validate()
	return config
}

func defaultTemperatureBand() Band {
	return Band{
		CriticalHigh: 45.0,
		CriticalLow:  -10.0,
		WarningHigh:  35.0,
		WarningLow:   5.0,
		NormalLow:    15.0,
		NormalHigh:   30.0,
	}
}

func defaultHumidityBand() Band {
	return Band{
		CriticalHigh: 95.0,
		CriticalLow:  15.0,
		WarningHigh:  85.0,
		WarningLow:   25.0,
		NormalLow:    40.0,
		NormalHigh:   70.0,
	}
}

func defaultEndpointLimits() map[string]EndpointLimit {
	return map[string]EndpointLimit{
		"/auth/login":     {Limit: 5, WindowSeconds: 300},
		"/api/v1/sensors": {Limit: 60, WindowSeconds: 60},
	}
}
