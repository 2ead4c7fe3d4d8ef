package conf

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	// Network configuration
	Net  string
	Port string

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Staging storage configuration
	Storage StorageConfig

	// Pinning service configuration
	Pin PinConfig

	// Durable deal network configuration
	Deal DealConfig

	// Consensus ledger configuration
	Ledger LedgerConfig

	// Migration orchestrator configuration
	Migration MigrationConfig
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Type         string // Record store type: mysql, pebble
	Dsn          string // MySQL DSN
	MaxOpenConns int    // MySQL max open connections
	MaxIdleConns int    // MySQL max idle connections
	DataDir      string // PebbleDB data directory
}

// RedisConfig redis configuration
type RedisConfig struct {
	Enabled  bool   // Enable Redis cache
	Host     string // Redis host
	Port     int    // Redis port
	Password string // Redis password (optional)
	DB       int    // Redis database number
	CacheTTL int    // Cache TTL in seconds (default: 300)
}

// StorageConfig staging storage configuration
type StorageConfig struct {
	Type  string
	Local LocalStorageConfig
	OSS   OSSStorageConfig
	S3    S3StorageConfig
}

// LocalStorageConfig local storage configuration
type LocalStorageConfig struct {
	BasePath string
}

// OSSStorageConfig OSS storage configuration
type OSSStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Domain    string
}

// S3StorageConfig AWS S3 storage configuration
type S3StorageConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Domain    string
	Endpoint  string // Optional custom endpoint
}

// PinConfig pinning service configuration
type PinConfig struct {
	ApiUrl             string   // Pinning API base URL
	ApiToken           string   // Pinning API bearer token
	Gateways           []string // Retrieval gateways, tried in order
	UploadTimeoutSec   int      // Timeout for pin uploads
	DownloadTimeoutSec int      // Per-gateway timeout for downloads
	MaxFileSize        int64    // Max upload size in bytes (config value is MB)
}

// DealConfig durable deal network configuration
type DealConfig struct {
	ApiUrl            string  // Deal engine base URL
	ApiToken          string  // Deal engine bearer token
	Network           string  // Network name (mainnet/calibration)
	MinBalance        float64 // Minimum balance required before a migration may run
	TokenKind         string  // Token the balance is denominated in
	DealDurationDays  int64   // Requested deal duration
	RequestTimeoutSec int     // Timeout for deal engine calls
}

// LedgerConfig consensus ledger configuration
type LedgerConfig struct {
	NodeUrl          string // Consensus gateway (write path) base URL
	MirrorUrl        string // Mirror read replica base URL
	OperatorId       string // Ledger account the service submits as
	TopicId          string // Operator-supplied topic id override (optional)
	TopicMemo        string // Memo used when creating the audit topic
	VerifyAttempts   int    // Default mirror poll attempts
	VerifyIntervalMs int    // Default sleep between mirror polls
	SubmitTimeoutSec int    // Timeout for write-path calls
}

// MigrationConfig migration orchestrator configuration
type MigrationConfig struct {
	BatchSize           int // Records per processor pass / retry batch
	ProcessIntervalSec  int // Background processor tick interval
	StalledThresholdMin int // Uploading records older than this are reclaimable
}

// Cfg global configuration instance
var Cfg *Config

// InitConfig initialize configuration
func InitConfig() error {
	viper.SetConfigFile(GetYaml())
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("Fatal error config file: %s", err)
	}

	Cfg = &Config{
		Net:  viper.GetString("net"),
		Port: viper.GetString("port"),

		Database: DatabaseConfig{
			Type:         viper.GetString("database.type"),
			Dsn:          viper.GetString("database.dsn"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			DataDir:      viper.GetString("database.data_dir"),
		},

		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetInt("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			CacheTTL: viper.GetInt("redis.cache_ttl"),
		},

		Storage: StorageConfig{
			Type: viper.GetString("storage.type"),
			Local: LocalStorageConfig{
				BasePath: viper.GetString("storage.local.base_path"),
			},
			OSS: OSSStorageConfig{
				Endpoint:  viper.GetString("storage.oss.endpoint"),
				AccessKey: viper.GetString("storage.oss.access_key"),
				SecretKey: viper.GetString("storage.oss.secret_key"),
				Bucket:    viper.GetString("storage.oss.bucket"),
				Domain:    viper.GetString("storage.oss.domain"),
			},
			S3: S3StorageConfig{
				Region:    viper.GetString("storage.s3.region"),
				AccessKey: viper.GetString("storage.s3.access_key"),
				SecretKey: viper.GetString("storage.s3.secret_key"),
				Bucket:    viper.GetString("storage.s3.bucket"),
				Domain:    viper.GetString("storage.s3.domain"),
				Endpoint:  viper.GetString("storage.s3.endpoint"),
			},
		},

		Pin: PinConfig{
			ApiUrl:             viper.GetString("pin.api_url"),
			ApiToken:           viper.GetString("pin.api_token"),
			Gateways:           viper.GetStringSlice("pin.gateways"),
			UploadTimeoutSec:   viper.GetInt("pin.upload_timeout_sec"),
			DownloadTimeoutSec: viper.GetInt("pin.download_timeout_sec"),
			MaxFileSize:        viper.GetInt64("pin.max_file_size") * 1024 * 1024, // MB to bytes
		},

		Deal: DealConfig{
			ApiUrl:            viper.GetString("deal.api_url"),
			ApiToken:          viper.GetString("deal.api_token"),
			Network:           viper.GetString("deal.network"),
			MinBalance:        viper.GetFloat64("deal.min_balance"),
			TokenKind:         viper.GetString("deal.token_kind"),
			DealDurationDays:  viper.GetInt64("deal.duration_days"),
			RequestTimeoutSec: viper.GetInt("deal.request_timeout_sec"),
		},

		Ledger: LedgerConfig{
			NodeUrl:          viper.GetString("ledger.node_url"),
			MirrorUrl:        viper.GetString("ledger.mirror_url"),
			OperatorId:       viper.GetString("ledger.operator_id"),
			TopicId:          viper.GetString("ledger.topic_id"),
			TopicMemo:        viper.GetString("ledger.topic_memo"),
			VerifyAttempts:   viper.GetInt("ledger.verify_attempts"),
			VerifyIntervalMs: viper.GetInt("ledger.verify_interval_ms"),
			SubmitTimeoutSec: viper.GetInt("ledger.submit_timeout_sec"),
		},

		Migration: MigrationConfig{
			BatchSize:           viper.GetInt("migration.batch_size"),
			ProcessIntervalSec:  viper.GetInt("migration.process_interval_sec"),
			StalledThresholdMin: viper.GetInt("migration.stalled_threshold_min"),
		},
	}

	// Set default values
	if Cfg.Port == "" {
		Cfg.Port = "7310"
	}
	if Cfg.Database.MaxOpenConns == 0 {
		Cfg.Database.MaxOpenConns = 100
	}
	if Cfg.Database.MaxIdleConns == 0 {
		Cfg.Database.MaxIdleConns = 10
	}
	if Cfg.Storage.Type == "" {
		Cfg.Storage.Type = "local"
	}
	if Cfg.Storage.Local.BasePath == "" {
		Cfg.Storage.Local.BasePath = "./data/staging"
	}
	if Cfg.Pin.UploadTimeoutSec == 0 {
		Cfg.Pin.UploadTimeoutSec = 60
	}
	if Cfg.Pin.DownloadTimeoutSec == 0 {
		Cfg.Pin.DownloadTimeoutSec = 30
	}
	if Cfg.Pin.MaxFileSize == 0 {
		Cfg.Pin.MaxFileSize = 10485760
	}
	if Cfg.Deal.Network == "" {
		Cfg.Deal.Network = "mainnet"
	}
	if Cfg.Deal.MinBalance == 0 {
		Cfg.Deal.MinBalance = 0.1
	}
	if Cfg.Deal.TokenKind == "" {
		Cfg.Deal.TokenKind = "FIL"
	}
	if Cfg.Deal.DealDurationDays == 0 {
		Cfg.Deal.DealDurationDays = 180
	}
	if Cfg.Deal.RequestTimeoutSec == 0 {
		Cfg.Deal.RequestTimeoutSec = 120
	}
	if Cfg.Ledger.TopicMemo == "" {
		Cfg.Ledger.TopicMemo = "evidence-vault session audit"
	}
	if Cfg.Ledger.VerifyAttempts == 0 {
		Cfg.Ledger.VerifyAttempts = 5
	}
	if Cfg.Ledger.VerifyIntervalMs == 0 {
		Cfg.Ledger.VerifyIntervalMs = 2000
	}
	if Cfg.Ledger.SubmitTimeoutSec == 0 {
		Cfg.Ledger.SubmitTimeoutSec = 15
	}
	if Cfg.Migration.BatchSize == 0 {
		Cfg.Migration.BatchSize = 20
	}
	if Cfg.Migration.ProcessIntervalSec == 0 {
		Cfg.Migration.ProcessIntervalSec = 10
	}
	if Cfg.Migration.StalledThresholdMin == 0 {
		Cfg.Migration.StalledThresholdMin = 30
	}

	return nil
}
