package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		value      string
		production bool
		want       zerolog.Level
		ok         bool
	}{
		{"", false, zerolog.DebugLevel, true},
		{"", true, zerolog.InfoLevel, true},
		{"DEBUG", true, zerolog.DebugLevel, true},
		{"warning", false, zerolog.WarnLevel, true},
		{"warn", false, zerolog.WarnLevel, true},
		{"error", false, zerolog.ErrorLevel, true},
		{"disabled", false, zerolog.Disabled, true},
		{"loud", false, zerolog.InfoLevel, false},
		{"trace", false, zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		level, ok := ParseLogLevel(tc.value, tc.production)
		assert.Equal(t, tc.want, level, tc.value)
		assert.Equal(t, tc.ok, ok, tc.value)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, SplitList(" http://a.example, ,http://b.example "))
	assert.Nil(t, SplitList(""))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "25")
	assert.Equal(t, 25, GetIntEnv("TEST_INT", 10))

	t.Setenv("TEST_INT", "lots")
	assert.Equal(t, 10, GetIntEnv("TEST_INT", 10))

	t.Setenv("TEST_INT", "-3")
	assert.Equal(t, 10, GetIntEnv("TEST_INT", 10))
}

func TestGetFloatEnv(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.5")
	assert.Equal(t, 0.5, GetFloatEnv("TEST_FLOAT", 30))

	t.Setenv("TEST_FLOAT", "")
	assert.Equal(t, 30.0, GetFloatEnv("TEST_FLOAT", 30))
}

func TestLoadConfig(t *testing.T) {
	for key, value := range map[string]string{
		"DISCOGS_TOKEN":              "discogs",
		"EBAY_APP_ID":                "app",
		"EBAY_CERT_ID":               "cert",
		"GOOGLE_OAUTH_CLIENT_ID":     "client",
		"GOOGLE_OAUTH_CLIENT_SECRET": "secret",
		"SECRET_KEY":                 "key",
		"CORS_ORIGINS":               "http://localhost:3000",
		"MAX_UPLOAD_MB":              "4",
		"APP_ADDR":                   "",
		"DB_DSN":                     "",
	} {
		t.Setenv(key, value)
	}

	cfg := LoadConfig()

	assert.Equal(t, ":5001", cfg.Addr)
	assert.Equal(t, "discogs", cfg.DiscogsToken)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, int64(4<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.DatabaseDSN)
}

func TestInitializeNotificationClient(t *testing.T) {
	client := InitializeNotificationClient(Config{NotifyEnabled: true, NotifyURL: "https://ntfy.example", NotifyTopic: "t"})
	assert.True(t, client.Enabled())
}
