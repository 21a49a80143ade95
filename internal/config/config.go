// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	// Server
	Port            int
	BaseURL         string
	IdleTimeout     time.Duration
	CORSOrigins     []string
	APIToken        string // static bearer token for the single-user deployment

	// Store
	DatabaseURL     string
	EncryptionKey   []byte // 32 bytes, always derived via HKDF

	// AI backend
	AIBackend     string // native, openai_compatible, mock
	AIHost        string
	AIAPIKey      string
	AIModel       string
	AIVisionModel string
	AITimeout     time.Duration

	// Router / prompt overrides
	RouterConfigPath  string // optional path to router.toml override
	PromptOverrideDir string // optional directory of prompt overrides

	// Backup engine
	BackupDir          string
	BackupRetainDaily  int
	BackupS3Endpoint   string
	BackupS3Bucket     string
	BackupS3Region     string
	BackupS3AccessKey  string
	BackupS3SecretKey  string

	// Worker
	WorkerPollInterval time.Duration
	WorkerConcurrency  int

	DataDir string
}

// Load builds a Config from environment variables, applying sane self-hosted
// single-user defaults.
func Load() (*Config, error) {
	dataDir := getEnv("HONE_DATA_DIR", "./data")

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
		APIToken:    getEnv("HONE_API_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", fmt.Sprintf("file:%s/hone.db", dataDir)),

		AIBackend:     getEnv("AI_BACKEND", "mock"),
		AIHost:        getEnv("AI_HOST", "http://localhost:11434"),
		AIAPIKey:      getEnv("AI_API_KEY", ""),
		AIModel:       getEnv("AI_MODEL", "llama3.1"),
		AIVisionModel: getEnv("AI_VISION_MODEL", ""),
		AITimeout:     getEnvDuration("AI_TIMEOUT", 60*time.Second),

		RouterConfigPath:  getEnv("ROUTER_CONFIG_PATH", ""),
		PromptOverrideDir: getEnv("PROMPT_OVERRIDE_DIR", ""),

		BackupDir:         getEnv("BACKUP_DIR", fmt.Sprintf("%s/backups", dataDir)),
		BackupRetainDaily:  getEnvInt("BACKUP_RETAIN_DAILY", 7),
		BackupS3Endpoint:   getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupS3Bucket:     getEnv("BACKUP_S3_BUCKET", ""),
		BackupS3Region:     getEnv("BACKUP_S3_REGION", "auto"),
		BackupS3AccessKey:  getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupS3SecretKey:  getEnv("BACKUP_S3_SECRET_KEY", ""),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 1*time.Hour),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 1),

		DataDir: dataDir,
	}

	// Encryption key: derived via HKDF from HONE_ENCRYPTION_KEY (any secret
	// string; no length check), else from HONE_SECRET, else from a freshly
	// generated random secret, in which case the key differs on every start.
	if rawKey := os.Getenv("HONE_ENCRYPTION_KEY"); rawKey != "" {
		cfg.EncryptionKey = deriveEncryptionKey(rawKey)
	} else if secret := os.Getenv("HONE_SECRET"); secret != "" {
		cfg.EncryptionKey = deriveEncryptionKey(secret)
	} else {
		secret, err := generateRandomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate encryption secret: %w", err)
		}
		cfg.EncryptionKey = deriveEncryptionKey(secret)
	}

	return cfg, nil
}

// UsesRemoteBackup reports whether the backup engine has an S3-compatible
// remote destination configured in addition to the local one.
func (c *Config) UsesRemoteBackup() bool {
	return c.BackupS3Bucket != "" && c.BackupS3AccessKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}

// generateRandomSecret creates a random 32-byte secret, hex-encoded.
func generateRandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf), nil
}

// deriveEncryptionKey derives a 32-byte AES-256 key from an arbitrary-length
// secret using HKDF-SHA256 with a fixed salt and info string, so the same
// secret always yields the same key across restarts.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("hone-store-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	kdf := hkdf.New(sha256.New, []byte(secret), salt, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf.Read only fails if more bytes are requested than the RFC 5869
		// limit allows (255 * hash size); 32 bytes never hits that.
		panic(err)
	}
	return key
}
