package config

import (
	"time"

	"vinyl_scanner/internal/retry"
	"vinyl_scanner/internal/sheets"
)

// ResilienceConfig bounds the outbound calls. Only spreadsheet reads behind
// the read-only pages are retried; the scan path never retries.
type ResilienceConfig struct {
	SheetRead   retry.Config
	HTTPTimeout time.Duration
	ScanTimeout time.Duration
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Timeout:    15 * time.Second,
		Retryable:  sheets.IsTransient,
	},
	HTTPTimeout: 15 * time.Second,
	ScanTimeout: 60 * time.Second,
}
