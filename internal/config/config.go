package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Security SecurityConfig `mapstructure:"security"`
	Store    StoreConfig    `mapstructure:"store"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Trust    TrustConfig    `mapstructure:"trust"`
	Threat   ThreatConfig   `mapstructure:"threat"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type SecurityConfig struct {
	Level                    string   `mapstructure:"level"` // standard | enterprise
	BiometricEnabled         bool     `mapstructure:"biometric_enabled"`
	MFAEnabled               bool     `mapstructure:"mfa_enabled"`
	VoiceAuthEnabled         bool     `mapstructure:"voice_auth_enabled"`
	DeviceAttestationEnabled bool     `mapstructure:"device_attestation_enabled"`
	ThreatDetectionEnabled   bool     `mapstructure:"threat_detection_enabled"`
	PolicyEnforcementEnabled bool     `mapstructure:"policy_enforcement_enabled"`
	AuditingEnabled          bool     `mapstructure:"auditing_enabled"`
	ComplianceFrameworks     []string `mapstructure:"compliance_frameworks"`
	RealTimeMonitoring       bool     `mapstructure:"real_time_monitoring"`
	ForensicMode             bool     `mapstructure:"forensic_mode"`
}

type StoreConfig struct {
	Type   string       `mapstructure:"type"` // memory | sqlite | redis
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type PolicyConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	RulePacks     []string      `mapstructure:"rule_packs"`
}

type TrustConfig struct {
	AssessmentTTL     time.Duration `mapstructure:"assessment_ttl"`
	DeviceCheckWindow time.Duration `mapstructure:"device_check_window"`
}

type ThreatConfig struct {
	BehavioralInterval  time.Duration `mapstructure:"behavioral_interval"`
	NetworkScanInterval time.Duration `mapstructure:"network_scan_interval"`
	BaselineWindow      int           `mapstructure:"baseline_window"`
	AnomalyStdDevs      float64       `mapstructure:"anomaly_stddevs"`
}

type AuditConfig struct {
	MinLevel         string        `mapstructure:"min_level"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	MaxBufferSize    int           `mapstructure:"max_buffer_size"`
	LogSensitiveData bool          `mapstructure:"log_sensitive_data"`
	SinkType         string        `mapstructure:"sink_type"` // chainfile | store
	ChainFilePath    string        `mapstructure:"chain_file_path"`
	SigningKeyAlias  string        `mapstructure:"signing_key_alias"`
	RetentionDays    int           `mapstructure:"retention_days"`
}

type NotifyConfig struct {
	Type    string `mapstructure:"type"` // log | nats
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("security.level", "standard")
	v.SetDefault("security.biometric_enabled", true)
	v.SetDefault("security.mfa_enabled", false)
	v.SetDefault("security.voice_auth_enabled", false)
	v.SetDefault("security.device_attestation_enabled", true)
	v.SetDefault("security.threat_detection_enabled", true)
	v.SetDefault("security.policy_enforcement_enabled", true)
	v.SetDefault("security.auditing_enabled", true)
	v.SetDefault("security.compliance_frameworks", []string{})
	v.SetDefault("security.real_time_monitoring", true)
	v.SetDefault("security.forensic_mode", false)
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.sqlite.path", "sentinel.db")
	v.SetDefault("policy.check_interval", "10m")
	v.SetDefault("trust.assessment_ttl", "15m")
	v.SetDefault("trust.device_check_window", "5m")
	v.SetDefault("threat.behavioral_interval", "30m")
	v.SetDefault("threat.network_scan_interval", "15m")
	v.SetDefault("threat.baseline_window", 50)
	v.SetDefault("threat.anomaly_stddevs", 3.0)
	v.SetDefault("audit.min_level", "info")
	v.SetDefault("audit.flush_interval", "30s")
	v.SetDefault("audit.max_buffer_size", 1000)
	v.SetDefault("audit.log_sensitive_data", false)
	v.SetDefault("audit.sink_type", "chainfile")
	v.SetDefault("audit.chain_file_path", "audit.jsonl")
	v.SetDefault("audit.signing_key_alias", "sentinel-audit")
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("notify.type", "log")
	v.SetDefault("notify.subject", "sentinel.security.alerts")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentinel")
	}

	// Environment variables override (SENTINEL_AUDIT_MIN_LEVEL, etc.)
	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration built purely from defaults.
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}
