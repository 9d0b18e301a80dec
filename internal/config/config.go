// Package config loads server settings from CSTORE_* environment variables
// and an optional config file named by CSTORE_CONFIG.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Backends accepted by the backend key.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "CSTORE"

// ConfigFileEnv names the optional yaml or toml file holding the same keys.
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// Config keys.
const (
	keyBackend        = "backend"
	keyDatabaseURL    = "database_url"
	keySQLitePath     = "sqlite_path"
	keyGRPCAddr       = "grpc_addr"
	keyHTTPAddr       = "http_addr"
	keyNATSURL        = "nats_url"
	keyAuthToken      = "auth_token"
	keyLogLevel       = "log_level"
	keySyncInterval   = "sync_interval"
	keySyncS3Bucket   = "sync_s3_bucket"
	keySyncS3Endpoint = "sync_s3_endpoint"
	keySyncS3Region   = "sync_s3_region"
	keySyncS3Key      = "sync_s3_key"
	keySyncGitRepo    = "sync_git_repo"
	keySyncGitFile    = "sync_git_file"
	keySyncGitBranch  = "sync_git_branch"
)

type Config struct {
	Backend     string     // CSTORE_BACKEND (postgres|sqlite|memory; default postgres when a database URL is set, else sqlite)
	DatabaseURL string     // CSTORE_DATABASE_URL (required for postgres)
	SQLitePath  string     // CSTORE_SQLITE_PATH (default "contentstore.db")
	GRPCAddr    string     // CSTORE_GRPC_ADDR (default ":9090")
	HTTPAddr    string     // CSTORE_HTTP_ADDR (default ":8080")
	NATSURL     string     // CSTORE_NATS_URL (optional, empty = no events)
	AuthToken   string     // CSTORE_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel    slog.Level // CSTORE_LOG_LEVEL (default "info")

	// Sync settings
	SyncInterval   time.Duration // CSTORE_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // CSTORE_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CSTORE_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CSTORE_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CSTORE_SYNC_S3_KEY (default "contentstore/backup.jsonl")
	SyncGitRepo    string        // CSTORE_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // CSTORE_SYNC_GIT_FILE (default "entries.jsonl")
	SyncGitBranch  string        // CSTORE_SYNC_GIT_BRANCH (default "main")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(keySQLitePath, "contentstore.db")
	v.SetDefault(keyGRPCAddr, ":9090")
	v.SetDefault(keyHTTPAddr, ":8080")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySyncInterval, "3m")
	v.SetDefault(keySyncS3Region, "us-east-1")
	v.SetDefault(keySyncS3Key, "contentstore/backup.jsonl")
	v.SetDefault(keySyncGitFile, "entries.jsonl")
	v.SetDefault(keySyncGitBranch, "main")
	return v
}

// Load reads the configuration. Environment variables override the config
// file, which overrides the defaults.
func Load() (*Config, error) {
	v := newViper()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	c := &Config{
		Backend:        v.GetString(keyBackend),
		DatabaseURL:    v.GetString(keyDatabaseURL),
		SQLitePath:     v.GetString(keySQLitePath),
		GRPCAddr:       v.GetString(keyGRPCAddr),
		HTTPAddr:       v.GetString(keyHTTPAddr),
		NATSURL:        v.GetString(keyNATSURL),
		AuthToken:      v.GetString(keyAuthToken),
		SyncS3Bucket:   v.GetString(keySyncS3Bucket),
		SyncS3Endpoint: v.GetString(keySyncS3Endpoint),
		SyncS3Region:   v.GetString(keySyncS3Region),
		SyncS3Key:      v.GetString(keySyncS3Key),
		SyncGitRepo:    v.GetString(keySyncGitRepo),
		SyncGitFile:    v.GetString(keySyncGitFile),
		SyncGitBranch:  v.GetString(keySyncGitBranch),
	}

	switch c.Backend {
	case "":
		c.Backend = BackendSQLite
		if c.DatabaseURL != "" {
			c.Backend = BackendPostgres
		}
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("CSTORE_BACKEND: unknown backend %q (want postgres, sqlite or memory)", c.Backend)
	}
	if c.Backend == BackendPostgres && c.DatabaseURL == "" {
		return nil, fmt.Errorf("CSTORE_DATABASE_URL is required for the postgres backend")
	}

	if err := c.LogLevel.UnmarshalText([]byte(v.GetString(keyLogLevel))); err != nil {
		return nil, fmt.Errorf("CSTORE_LOG_LEVEL: %w", err)
	}

	if s := v.GetString(keySyncInterval); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("CSTORE_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}
