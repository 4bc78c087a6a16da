// Package backend implements the HTTP sync client for the remote collector.
// This is the one place in the gateway where genuine blocking occurs; every
// call is capped by an explicit timeout and a fixed retry count.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eddielth/sensor-gateway/gateway"
	"github.com/eddielth/sensor-gateway/logger"
	"github.com/eddielth/sensor-gateway/metrics"
)

const (
	// MaxRetries bounds attempts per push
	MaxRetries = 3
	// RetryDelay is the fixed wait between attempts
	RetryDelay = 200 * time.Millisecond
	// RequestTimeout caps a data or status push
	RequestTimeout = 5 * time.Second
	// HealthTimeout caps a health probe
	HealthTimeout = 3 * time.Second
	// HealthCheckInterval rate-limits health probes
	HealthCheckInterval = 5 * time.Second
)

// readingPayload is the collector's expected shape for one reading
type readingPayload struct {
	NodeID       string  `json:"nodeId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
	BatteryLevel *int    `json:"batteryLevel"`
	RSSI         *int    `json:"rssi"`
	Timestamp    int64   `json:"timestamp"`
	EventID      string  `json:"eventId"`
}

// statusPayload is the gateway's own telemetry shape
type statusPayload struct {
	GatewayID        string `json:"gatewayId"`
	ActiveNodeCount  int    `json:"activeNodeCount"`
	NetworkMode      string `json:"networkMode"`
	BackendReachable bool   `json:"backendReachable"`
	Timestamp        int64  `json:"timestamp"`
	EventID          string `json:"eventId"`
}

// Client pushes readings and gateway telemetry to the remote collector and
// tracks its reachability through lightweight health probes.
type Client struct {
	baseURL    string
	dataPath   string
	statusPath string
	healthPath string

	httpClient   *http.Client
	healthClient *http.Client

	reachable       bool
	lastHealthCheck time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a sync client for the collector at baseURL
func NewClient(baseURL, dataPath, statusPath, healthPath string) *Client {
	return &Client{
		baseURL:      baseURL,
		dataPath:     dataPath,
		statusPath:   statusPath,
		healthPath:   healthPath,
		httpClient:   &http.Client{Timeout: RequestTimeout},
		healthClient: &http.Client{Timeout: HealthTimeout},
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Reachable reports whether the collector answered the last probe or push
func (c *Client) Reachable() bool {
	return c.reachable
}

// SendReading pushes one reading to the collector's data path. Any HTTP
// response, even a rejection, proves the collector is reachable; only a
// transport error or timeout counts against reachability. Returns true iff
// the collector accepted the reading.
func (c *Client) SendReading(r gateway.Reading) bool {
	payload := readingPayload{
		NodeID:       r.NodeID,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		SoilMoisture: r.SoilMoisture,
		BatteryLevel: r.BatteryLevel,
		RSSI:         r.RSSI,
		Timestamp:    r.CapturedAt.UnixMilli(),
		EventID:      uuid.NewString(),
	}

	ok := c.pushWithRetries(c.dataPath, payload, "sensor data")
	if ok {
		metrics.ReadingsSynced.Inc()
	} else {
		metrics.SendFailures.Inc()
	}
	return ok
}

// SendStatus pushes the gateway's own telemetry. Best effort: failures are
// logged and never escalate beyond the normal retry policy.
func (c *Client) SendStatus(gatewayID string, activeNodeCount int, networkMode string, reachable bool) bool {
	payload := statusPayload{
		GatewayID:        gatewayID,
		ActiveNodeCount:  activeNodeCount,
		NetworkMode:      networkMode,
		BackendReachable: reachable,
		Timestamp:        c.now().UnixMilli(),
		EventID:          uuid.NewString(),
	}
	return c.pushWithRetries(c.statusPath, payload, "gateway status")
}

// CheckHealth probes the collector's health path. Internally rate-limited,
// so callers may invoke it every tick.
func (c *Client) CheckHealth() bool {
	now := c.now()
	if now.Sub(c.lastHealthCheck) < HealthCheckInterval {
		return c.reachable
	}
	c.lastHealthCheck = now

	start := c.now()
	resp, err := c.healthClient.Get(c.baseURL + c.healthPath)
	elapsed := c.now().Sub(start)

	if err != nil {
		logger.Warn("[backend] health check failed after %s: %v", elapsed, err)
		c.setReachable(false)
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	if !healthy {
		logger.Warn("[backend] health check: HTTP %d (%s)", resp.StatusCode, elapsed)
	} else {
		logger.Debug("[backend] health check: HTTP %d (%s)", resp.StatusCode, elapsed)
	}
	c.setReachable(healthy)
	return healthy
}

// pushWithRetries POSTs a JSON payload with the bounded retry policy
func (c *Client) pushWithRetries(path string, payload interface{}, what string) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("[backend] failed to serialize %s: %v", what, err)
		return false
	}

	for attempt := 0; attempt < MaxRetries; attempt++ {
		status, err := c.performRequest(path, body)
		if err == nil {
			// The request reached the collector, so it is reachable even
			// if it rejected the payload
			c.setReachable(true)
			if status < 400 {
				logger.Debug("[backend] %s sent: HTTP %d", what, status)
				return true
			}
			logger.Warn("[backend] %s rejected: HTTP %d", what, status)
		} else {
			c.setReachable(false)
			logger.Warn("[backend] %s attempt %d/%d failed: %v", what, attempt+1, MaxRetries, err)
		}

		if attempt < MaxRetries-1 {
			c.sleep(RetryDelay)
		}
	}

	logger.Error("[backend] failed to send %s after %d attempts", what, MaxRetries)
	return false
}

func (c *Client) performRequest(path string, body []byte) (int, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) setReachable(reachable bool) {
	if reachable != c.reachable {
		logger.Info("[backend] collector reachability changed: %v -> %v", c.reachable, reachable)
	}
	c.reachable = reachable
	if reachable {
		metrics.BackendReachable.Set(1)
	} else {
		metrics.BackendReachable.Set(0)
	}
}
