package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string

	LiveKit LiveKitConfig
	OpenAI  OpenAIConfig
	Storage StorageConfig
	Redis   RedisConfig
	Admin   AdminConfig
}

type LiveKitConfig struct {
	URL             string
	APIKey          string
	APISecret       string
	RoomPrefix      string
	TokenTTLSeconds int
}

// Enabled reports whether enough is configured to issue media tokens.
func (c LiveKitConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != "" && c.APISecret != ""
}

type OpenAIConfig struct {
	APIKey           string
	TriageModel      string
	EnableModeration bool
}

type StorageConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

func (c StorageConfig) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AdminConfig struct {
	DefaultPassword string
}

const (
	defaultLiveKitPrefix = "sihha"
	defaultLiveKitTTL    = 900
	minLiveKitTTL        = 60
	defaultTriageModel   = "gpt-4o-mini"
	defaultAdminPassword = "0412"
)

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}

	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		LiveKit:        LiveKitFromEnv(),
		OpenAI:         OpenAIFromEnv(),
		Storage:        StorageFromEnv(),
		Redis:          RedisFromEnv(),
		Admin:          AdminFromEnv(),
	}, nil
}

func LiveKitFromEnv() LiveKitConfig {
	ttl := getEnvInt("LIVEKIT_TOKEN_TTL_SECONDS", defaultLiveKitTTL)
	if ttl < minLiveKitTTL {
		ttl = minLiveKitTTL
	}

	return LiveKitConfig{
		URL:             getEnv("LIVEKIT_URL", ""),
		APIKey:          getEnv("LIVEKIT_API_KEY", ""),
		APISecret:       getEnv("LIVEKIT_API_SECRET", ""),
		RoomPrefix:      getEnv("LIVEKIT_ROOM_PREFIX", defaultLiveKitPrefix),
		TokenTTLSeconds: ttl,
	}
}

func OpenAIFromEnv() OpenAIConfig {
	return OpenAIConfig{
		APIKey:           getEnv("OPENAI_API_KEY", ""),
		TriageModel:      getEnv("OPENAI_TRIAGE_MODEL", defaultTriageModel),
		EnableModeration: getEnvBool("TRIAGE_ENABLE_MODERATION", true),
	}
}

func StorageFromEnv() StorageConfig {
	return StorageConfig{
		Region:        getEnv("AWS_REGION", ""),
		AccessKey:     getEnv("AWS_ACCESS_KEY", ""),
		SecretKey:     getEnv("AWS_SECRET_KEY", ""),
		Bucket:        getEnv("BUCKET_NAME", ""),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
	}
}

// RedisFromEnv leaves Addr empty unless REDIS_ADDR is set; the cache is
// optional.
func RedisFromEnv() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func AdminFromEnv() AdminConfig {
	return AdminConfig{
		DefaultPassword: getEnv("ADMIN_DEFAULT_PASSWORD", defaultAdminPassword),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
