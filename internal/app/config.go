package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupEnvironment reads an optional .env file and points the global zerolog
// logger at stderr: JSON with unix timestamps in production, console output
// everywhere else.
func SetupEnvironment() {
	envErr := godotenv.Load()

	production := os.Getenv("ENV") == "production"
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	raw := os.Getenv("LOGLEVEL")
	level, ok := ParseLogLevel(raw, production)
	zerolog.SetGlobalLevel(level)
	if !ok {
		log.Warn().Str("loglevel", raw).Msg("Unknown LOGLEVEL, using info")
	}

	// logged only now so the message goes through the configured writer
	if envErr == nil {
		log.Debug().Msg("Loaded .env file")
	} else {
		log.Debug().Msg("No .env file, using process environment")
	}
}

// ParseLogLevel maps LOGLEVEL to a zerolog level. Blank means info in
// production and debug in development. Unknown names fall back to info and
// report ok=false.
func ParseLogLevel(value string, production bool) (zerolog.Level, bool) {
	switch name := strings.ToLower(strings.TrimSpace(value)); name {
	case "":
		if production {
			return zerolog.InfoLevel, true
		}
		return zerolog.DebugLevel, true
	case "warning":
		return zerolog.WarnLevel, true
	case "debug", "info", "warn", "error", "disabled":
		level, err := zerolog.ParseLevel(name)
		if err != nil {
			return zerolog.InfoLevel, false
		}
		return level, true
	default:
		return zerolog.InfoLevel, false
	}
}

type Config struct {
	Addr string

	DiscogsToken string
	EbayAppID    string
	EbayCertID   string

	// GoogleCredentials is the service account file used for Vision.
	GoogleCredentials string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string
	SecretKey         string
	SecureCookies     bool

	CORSOrigins       []string
	MaxUploadBytes    int64
	ScanRatePerMinute float64
	ScanBurst         int

	DatabaseDSN string

	NotifyEnabled  bool
	NotifyURL      string
	NotifyTopic    string
	NotifyPriority string

	ShutdownGracePeriod time.Duration
}

// LoadConfig reads the environment. Missing required variables are fatal.
func LoadConfig() Config {
	cfg := Config{
		Addr:              GetEnvWithDefault("APP_ADDR", ":5001"),
		DiscogsToken:      GetRequiredEnv("DISCOGS_TOKEN"),
		EbayAppID:         GetRequiredEnv("EBAY_APP_ID"),
		EbayCertID:        GetRequiredEnv("EBAY_CERT_ID"),
		GoogleCredentials: GetEnvWithDefault("GOOGLE_CREDENTIALS", "credentials.json"),
		OAuthClientID:     GetRequiredEnv("GOOGLE_OAUTH_CLIENT_ID"),
		OAuthClientSecret: GetRequiredEnv("GOOGLE_OAUTH_CLIENT_SECRET"),
		OAuthRedirectURL:  GetEnvWithDefault("OAUTH_REDIRECT_URL", "http://localhost:5001/login/google/authorized"),
		SecretKey:         GetRequiredEnv("SECRET_KEY"),
		SecureCookies:     GetEnvWithDefault("SECURE_COOKIES", "false") == "true",
		CORSOrigins:       SplitList(os.Getenv("CORS_ORIGINS")),
		MaxUploadBytes:    int64(GetIntEnv("MAX_UPLOAD_MB", 10)) << 20,
		ScanRatePerMinute: GetFloatEnv("SCAN_RATE_LIMIT", 30),
		ScanBurst:         GetIntEnv("SCAN_RATE_BURST", 5),
		DatabaseDSN:       os.Getenv("DB_DSN"),
		NotifyEnabled:     GetEnvWithDefault("NTFY_ENABLED", "false") == "true",
		NotifyURL:         GetEnvWithDefault("NTFY_URL", "https://ntfy.sh"),
		NotifyTopic:       GetEnvWithDefault("NTFY_TOPIC", "vinyl-scanner"),
		NotifyPriority:    GetEnvWithDefault("NTFY_PRIORITY", "default"),

		ShutdownGracePeriod: 10 * time.Second,
	}

	log.Debug().
		Str("addr", cfg.Addr).
		Bool("postgres_sessions", cfg.DatabaseDSN != "").
		Int("cors_origins", len(cfg.CORSOrigins)).
		Float64("scan_rate_per_minute", cfg.ScanRatePerMinute).
		Msg("Configuration loaded")
	return cfg
}

// GetRequiredEnv fetches a required environment variable or exits if not set.
func GetRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Msgf("%s environment variable is required", key)
	}
	return value
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func GetFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		log.Warn().Str("key", key).Str("value", value).Float64("default", defaultValue).Msg("Invalid number, using default")
		return defaultValue
	}
	return f
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
