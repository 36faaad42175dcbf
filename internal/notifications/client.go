// Package notifications pushes scan announcements to an ntfy topic.
package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	priority   string

	wg sync.WaitGroup

	mutex       sync.Mutex
	totalSent   int64
	totalFailed int64
}

// ScanInfo is what a notification says about a logged scan.
type ScanInfo struct {
	MatrixNumber string
	Title        string
	Year         string
	MedianPrice  *float64
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func NewClient(baseURL, topic string, enabled bool, priority string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		topic:    topic,
		enabled:  enabled,
		priority: priority,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Send posts message to the topic once. Failures are returned, never retried.
func (c *Client) Send(ctx context.Context, title, message string) error {
	if !c.Enabled() {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}
	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(false)
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.record(false)
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	c.record(true)
	log.Debug().Int("status_code", resp.StatusCode).Msg("Notification sent")
	return nil
}

// NotifyScanLogged announces a logged scan in the background. It does not
// wait for the request and never fails the caller.
func (c *Client) NotifyScanLogged(ctx context.Context, scan ScanInfo) {
	if !c.Enabled() {
		return
	}

	title, message := FormatScanMessage(scan)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Send(context.WithoutCancel(ctx), title, message); err != nil {
			log.Warn().Err(err).Str("matrix", scan.MatrixNumber).Msg("Scan notification failed")
		}
	}()
}

// Wait blocks until background notifications have finished.
func (c *Client) Wait() {
	if c != nil {
		c.wg.Wait()
	}
}

func FormatScanMessage(scan ScanInfo) (string, string) {
	var sb strings.Builder
	sb.WriteString(scan.Title)
	if scan.Year != "" {
		fmt.Fprintf(&sb, " (%s)", scan.Year)
	}
	fmt.Fprintf(&sb, "\nMatrix: %s", scan.MatrixNumber)
	if scan.MedianPrice != nil {
		fmt.Fprintf(&sb, "\nMedian price: £%.2f", *scan.MedianPrice)
	} else {
		sb.WriteString("\nNo eBay prices found")
	}
	return "Record logged", sb.String()
}

// Metrics returns counts of sent and failed notifications.
func (c *Client) Metrics() (sent, failed int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed
}

func (c *Client) record(ok bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if ok {
		c.totalSent++
	} else {
		c.totalFailed++
	}
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return "auth"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}
