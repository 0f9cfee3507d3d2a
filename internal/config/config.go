package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr       string
	IMAPHost         string
	IMAPPort         int
	IMAPSkipVerify   bool
	SpamFolder       string
	GeoBaseURL       string
	GeoMinInterval   time.Duration
	DefaultMaxEmails int
	MaxEmailBytes    int
	StaticDir        string
	LogLevel         string
}

func Load() *Config {
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		IMAPHost:         getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:         getEnvInt("IMAP_PORT", 993),
		IMAPSkipVerify:   getEnvBool("IMAP_TLS_SKIP_VERIFY", false),
		SpamFolder:       getEnv("SPAM_FOLDER", "[Gmail]/Spam"),
		GeoBaseURL:       getEnv("GEOIP_BASE_URL", "http://ip-api.com/json"),
		GeoMinInterval:   time.Duration(getEnvInt("GEOIP_MIN_INTERVAL_MS", 1500)) * time.Millisecond,
		DefaultMaxEmails: getEnvInt("DEFAULT_MAX_EMAILS", 50),
		MaxEmailBytes:    getEnvInt("MAX_EMAIL_BYTES", 5242880), // 5MB
		StaticDir:        getEnv("STATIC_DIR", "web"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
