// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for all databases (always absolute)
	Port       int
	LogLevel   string
	DevMode    bool
	AdminToken string // Capability token for the privileged caller role

	// VaultID and AssetID are the linkage every registered strategy must
	// declare. A strategy declaring anything else is rejected at add time.
	VaultID string
	AssetID string

	SnapshotSchedule string // cron spec for allocation snapshots
	Backup           *BackupConfig
}

// BackupConfig holds S3-compatible backup configuration
type BackupConfig struct {
	Enabled   bool
	Bucket    string
	Prefix    string
	Endpoint  string // Optional custom endpoint (R2, MinIO); empty = AWS S3
	Region    string
	Schedule  string // cron spec for scheduled backups
	KeepCount int    // Number of backups to retain

	// Static credentials. When empty, the AWS default credential chain
	// applies.
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, resolve to absolute, and ensure it exists
	dataDir := getEnv("BALLAST_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("BALLAST_PORT", 8010),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		AdminToken:       getEnv("BALLAST_ADMIN_TOKEN", ""),
		VaultID:          getEnv("BALLAST_VAULT_ID", "vault-main"),
		AssetID:          getEnv("BALLAST_ASSET_ID", "USDC"),
		SnapshotSchedule: getEnv("BALLAST_SNAPSHOT_SCHEDULE", "@every 15m"),
		Backup:           loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// DevMode allows running without an admin token; production requires one
	if !c.DevMode && c.AdminToken == "" {
		return fmt.Errorf("BALLAST_ADMIN_TOKEN is required outside dev mode")
	}
	if c.VaultID == "" || c.AssetID == "" {
		return fmt.Errorf("vault and asset identifiers must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads backup configuration; disabled unless a bucket is set
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")
	return &BackupConfig{
		Enabled:   bucket != "",
		Bucket:    bucket,
		Prefix:    getEnv("BACKUP_S3_PREFIX", "ballast"),
		Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:    getEnv("BACKUP_S3_REGION", "auto"),
		Schedule:  getEnv("BACKUP_SCHEDULE", "@daily"),
		KeepCount: getEnvAsInt("BACKUP_KEEP_COUNT", 14),

		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
	}
}
