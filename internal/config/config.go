package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Signature verification modes.
const (
	SignaturesRegistry    = "registry"
	SignaturesAlwaysValid = "always-valid"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled           bool
	KafkaBrokers           []string
	KafkaAttestationTopic  string
	KafkaNotificationTopic string
	KafkaGroupID           string

	BatchSize          int
	BatchFlushInterval time.Duration

	// DatabaseDSN enables the sqlite audit journal and treasury ledger.
	// Empty keeps the treasury in memory.
	DatabaseDSN    string
	TreasuryStrict bool

	QuorumThreshold        uint64
	RejectLateAttestations bool
	SignatureMode          string
	OperatorRegistryPath   string

	PremiumRateBPS  int64
	CancelRefundBPS int64
	PolicyDuration  time.Duration

	SeasonMode            string
	RiskHistoryCapacity   int
	ImpactHistoryCapacity int
	RefdataPath           string

	// Weather feed. Without WEATHER_API_URL the in-memory oracle table is used.
	WeatherAPIURL     string
	WeatherAPIToken   string
	WeatherAPITimeout time.Duration
	WeatherCacheSize  int
	WeatherCacheTTL   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:           os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:           sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAttestationTopic:  sharedcfg.EnvOrDefault("KAFKA_ATTESTATION_TOPIC", "operator-attestations"),
		KafkaNotificationTopic: sharedcfg.EnvOrDefault("KAFKA_NOTIFICATION_TOPIC", "settlement-notifications"),
		KafkaGroupID:           sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "parametric-settlement"),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		TreasuryStrict: os.Getenv("TREASURY_STRICT") == "true",

		SignatureMode:        sharedcfg.EnvOrDefault("SIGNATURE_MODE", SignaturesRegistry),
		OperatorRegistryPath: os.Getenv("OPERATOR_REGISTRY_PATH"),

		SeasonMode:  sharedcfg.EnvOrDefault("SEASON_MODE", "epoch30"),
		RefdataPath: os.Getenv("REFDATA_PATH"),

		WeatherAPIURL:   strings.TrimRight(os.Getenv("WEATHER_API_URL"), "/"),
		WeatherAPIToken: os.Getenv("WEATHER_API_TOKEN"),
	}

	if cfg.QuorumThreshold, err = parseUint("QUORUM_THRESHOLD", 3); err != nil {
		return nil, err
	}
	switch late := sharedcfg.EnvOrDefault("LATE_ATTESTATIONS", "accept"); late {
	case "accept":
	case "reject":
		cfg.RejectLateAttestations = true
	default:
		return nil, errors.New("invalid LATE_ATTESTATIONS: must be accept or reject")
	}

	if cfg.PremiumRateBPS, err = parseBPS("PREMIUM_RATE_BPS", 500); err != nil {
		return nil, err
	}
	if cfg.CancelRefundBPS, err = parseBPS("CANCEL_REFUND_BPS", 5000); err != nil {
		return nil, err
	}
	if cfg.PolicyDuration, err = parseDuration("POLICY_DURATION", 720*time.Hour); err != nil {
		return nil, err
	}

	if cfg.RiskHistoryCapacity, err = parsePositiveInt("RISK_HISTORY_CAPACITY", 1024); err != nil {
		return nil, err
	}
	if cfg.ImpactHistoryCapacity, err = parsePositiveInt("IMPACT_HISTORY_CAPACITY", 256); err != nil {
		return nil, err
	}

	if cfg.WeatherAPITimeout, err = parseDuration("WEATHER_API_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheSize, err = parsePositiveInt("WEATHER_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheTTL, err = parseDuration("WEATHER_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaAttestationTopic == "" {
			return nil, errors.New("KAFKA_ATTESTATION_TOPIC is required")
		}
		if cfg.KafkaNotificationTopic == "" {
			return nil, errors.New("KAFKA_NOTIFICATION_TOPIC is required")
		}
	}
	switch cfg.SignatureMode {
	case SignaturesRegistry:
		if cfg.OperatorRegistryPath == "" {
			return nil, errors.New("OPERATOR_REGISTRY_PATH is required when SIGNATURE_MODE is registry")
		}
	case SignaturesAlwaysValid:
	default:
		return nil, errors.New("invalid SIGNATURE_MODE: must be registry or always-valid")
	}
	if cfg.SeasonMode != "epoch30" && cfg.SeasonMode != "calendar" {
		return nil, errors.New("invalid SEASON_MODE: must be epoch30 or calendar")
	}

	return cfg, nil
}

func parseUint(key string, def uint64) (uint64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseBPS(key string, def int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 || n > 10000 {
		return 0, errors.New("invalid " + key + ": must be 0..10000")
	}
	return n, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def.String()))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}
