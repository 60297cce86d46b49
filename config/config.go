package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Gateway  GatewayConfig
	Voice    VoiceConfig
}

// ServerConfig holds HTTP server settings for the operator API.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AdminConfig holds the operator login credential. PasswordHash is a bcrypt
// hash; login is disabled when it is empty.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// GatewayConfig holds the bot gateway REST endpoint and the Redis channel the
// gateway publishes voice presence events on.
type GatewayConfig struct {
	BaseURL         string
	Token           string
	PresenceChannel string
	RequestTimeout  int // seconds
}

// VoiceConfig holds the voice channel lifecycle settings.
type VoiceConfig struct {
	SpawnerChannelID string        // joining this channel creates a personal one
	CategoryID       string        // parent category for created channels
	NamePrefix       string        // prepended to every channel name
	CreateCooldown   time.Duration // per-user gate on channel creation
	DestroyDebounce  time.Duration // wait before confirming the owner is gone
	InviteWindow     time.Duration // per (inviter, invited, channel) invite gate
	OwnerRights      []string      // rights granted to a channel owner
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "voicehub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:         getEnv("GATEWAY_BASE_URL", "http://localhost:8090"),
			Token:           getEnv("GATEWAY_TOKEN", ""),
			PresenceChannel: getEnv("GATEWAY_PRESENCE_CHANNEL", "voice:presence"),
			RequestTimeout:  getEnvInt("GATEWAY_REQUEST_TIMEOUT_SEC", 10),
		},
		Voice: VoiceConfig{
			SpawnerChannelID: getEnv("VOICE_SPAWNER_CHANNEL_ID", ""),
			CategoryID:       getEnv("VOICE_CATEGORY_ID", ""),
			NamePrefix:       getEnv("VOICE_NAME_PREFIX", "\U0001F50A╏ "),
			CreateCooldown:   time.Duration(getEnvInt("VOICE_CREATE_COOLDOWN_SEC", 5)) * time.Second,
			DestroyDebounce:  time.Duration(getEnvInt("VOICE_DESTROY_DEBOUNCE_MS", 500)) * time.Millisecond,
			InviteWindow:     time.Duration(getEnvInt("VOICE_INVITE_WINDOW_HOURS", 2)) * time.Hour,
			OwnerRights:      splitTrim(getEnv("VOICE_OWNER_RIGHTS", "connect,manage_channels,move_members,mute_members"), ","),
		},
	}

	if cfg.Voice.SpawnerChannelID == "" {
		return nil, fmt.Errorf("VOICE_SPAWNER_CHANNEL_ID is required")
	}
	if cfg.Voice.CategoryID == "" {
		return nil, fmt.Errorf("VOICE_CATEGORY_ID is required")
	}
	return cfg, nil
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

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
