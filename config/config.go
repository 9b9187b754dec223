package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	FCM      FCMConfig
}

type ServerConfig struct {
	ListenAddr     string
	APIPath        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr string
}

type AuthConfig struct {
	ClientID     string
	ClientSecret string
	SessionKey   string
	AdminEmail   string
	Private      bool
	TokenExpiry  time.Duration
}

type FCMConfig struct {
	CredentialsFile string
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables win in production.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:     getEnv("API_LISTEN_ADDR", ":8080"),
			APIPath:        getEnv("API_PATH", ""),
			AllowedOrigins: []string{getEnv("API_ALLOWED_ORIGIN", "*")},
		},
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "db"),
			Port:     getEnvAsInt("DATABASE_PORT", 5432),
			User:     getEnv("DATABASE_USER", "postgres"),
			Password: getEnv("DATABASE_PASSWORD", ""),
			Name:     getEnv("DATABASE_NAME", "craftfolio"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "redis:6379"),
		},
		Auth: AuthConfig{
			ClientID:     getEnv("AUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),
			SessionKey:   getEnv("AUTH_SESSION_KEY", ""),
			AdminEmail:   getEnv("API_ADMIN_EMAIL", ""),
			Private:      getEnv("API_MODE", "") == "private",
			TokenExpiry:  time.Duration(getEnvAsInt("AUTH_TOKEN_EXPIRY_HOURS", 1)) * time.Hour,
		},
		FCM: FCMConfig{
			CredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.User == "" || c.Database.Name == "" {
		return fmt.Errorf("database user and name must be set")
	}
	if c.Auth.SessionKey == "" {
		return fmt.Errorf("AUTH_SESSION_KEY must be set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("bad value for %s: %s", key, value)
		return fallback
	}
	return n
}
