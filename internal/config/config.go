package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Auth       AuthConfig       `mapstructure:"auth"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"` // payout history read model
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Reporting  ReportingConfig  `mapstructure:"reporting"`
	Onboarding OnboardingConfig `mapstructure:"onboarding"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	PaymentsTopic  string   `mapstructure:"payments_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	CoolDown      time.Duration `mapstructure:"cool_down"`
}

type BreakersConfig struct {
	Accounts  BreakerConfig `mapstructure:"accounts"`
	Transfers BreakerConfig `mapstructure:"transfers"`
	Balances  BreakerConfig `mapstructure:"balances"`
}

type ProcessorConfig struct {
	BaseURL   string         `mapstructure:"base_url"`
	SecretKey string         `mapstructure:"secret_key"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Breakers  BreakersConfig `mapstructure:"breakers"`
}

type SettlementConfig struct {
	DefaultFeePercent float64       `mapstructure:"default_fee_percent"`
	Currency          string        `mapstructure:"currency"`
	BatchSize         int           `mapstructure:"batch_size"`
	Schedule          string        `mapstructure:"schedule"` // cron, used by `worker settle`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	DeadLetterKey     string        `mapstructure:"dead_letter_key"`
	DeadLetterEvery   time.Duration `mapstructure:"dead_letter_every"`
}

type ReportingConfig struct {
	HistorySource string `mapstructure:"history_source"` // mysql | clickhouse
}

type OnboardingConfig struct {
	ReturnURL  string `mapstructure:"return_url"`
	RefreshURL string `mapstructure:"refresh_url"`
	Country    string `mapstructure:"country"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (PAYOUTS_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (PAYOUTS_*), e.g. PAYOUTS_MYSQL_DSN
	v.SetEnvPrefix("PAYOUTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	s := c.Settlement
	if s.DefaultFeePercent < 0 || s.DefaultFeePercent > 100 {
		return fmt.Errorf("settlement.default_fee_percent out of range: %v", s.DefaultFeePercent)
	}
	if strings.TrimSpace(s.Currency) == "" {
		return fmt.Errorf("settlement.currency is empty")
	}
	for name, b := range map[string]BreakerConfig{
		"accounts":  c.Processor.Breakers.Accounts,
		"transfers": c.Processor.Breakers.Transfers,
		"balances":  c.Processor.Breakers.Balances,
	} {
		if b.FailThreshold <= 0 || b.CoolDown <= 0 {
			return fmt.Errorf("processor.breakers.%s: threshold and cool_down must be positive", name)
		}
	}
	switch c.Reporting.HistorySource {
	case "mysql", "clickhouse":
	default:
		return fmt.Errorf("reporting.history_source: unknown %q", c.Reporting.HistorySource)
	}
	return nil
}
