// Package ota talks to the firmware update service: version checks,
// device activation and streamed upgrades. It implements device.Updater.
package ota

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voxling/voxling/pkg/device"
)

// ErrActivationPending is returned by Activate while the user has not yet
// confirmed the code on the server side.
var ErrActivationPending = errors.New("ota: activation pending")

// Config configures a Client.
type Config struct {
	// CheckURL is the version check endpoint. Required.
	CheckURL string

	// CurrentVersion is the running firmware version. Required.
	CurrentVersion string

	// DeviceID identifies the hardware, typically the MAC address.
	DeviceID string

	// ClientID is the per-install UUID.
	ClientID string

	// SerialNumber enables activation protocol v2 when set.
	SerialNumber string

	// HMACKey signs activation challenges in protocol v2.
	HMACKey []byte

	// UserAgent is sent with every request, for example "voxling/1.2.3".
	UserAgent string

	// DeviceInfo is marshaled as the request body of the version check.
	// Nil sends an empty body with a GET request.
	DeviceInfo any

	// Apply receives the downloaded firmware image. Nil discards it,
	// which simulators use.
	Apply func(r io.Reader) error

	// MarkValid confirms the running image to the bootloader. Nil is a
	// no-op.
	MarkValid func()

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client is the update service client.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger

	mu        sync.Mutex
	challenge string
}

var _ device.Updater = (*Client)(nil)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.CheckURL == "" {
		return nil, errors.New("ota: Config.CheckURL is required")
	}
	if cfg.CurrentVersion == "" {
		return nil, errors.New("ota: Config.CurrentVersion is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, log: log}, nil
}

type checkResponse struct {
	Firmware *struct {
		Version string `json:"version"`
		URL     string `json:"url"`
		Force   int    `json:"force"`
	} `json:"firmware"`
	Activation *struct {
		Message   string `json:"message"`
		Code      string `json:"code"`
		Challenge string `json:"challenge"`
		TimeoutMs int    `json:"timeout_ms"`
	} `json:"activation"`
	ServerTime *struct {
		Timestamp      int64 `json:"timestamp"`
		TimezoneOffset int   `json:"timezone_offset"`
	} `json:"server_time"`
}

// CheckVersion asks the server for the latest release and the device's
// activation status.
func (c *Client) CheckVersion() (*device.Release, error) {
	var body io.Reader
	method := http.MethodGet
	if c.cfg.DeviceInfo != nil {
		raw, err := json.Marshal(c.cfg.DeviceInfo)
		if err != nil {
			return nil, fmt.Errorf("ota: encode device info: %w", err)
		}
		body = bytes.NewReader(raw)
		method = http.MethodPost
	}
	req, err := http.NewRequest(method, c.cfg.CheckURL, body)
	if err != nil {
		return nil, fmt.Errorf("ota: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ota: check version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ota: check version: unexpected status %s", resp.Status)
	}
	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ota: decode response: %w", err)
	}

	rel := &device.Release{Version: c.cfg.CurrentVersion}
	if fw := parsed.Firmware; fw != nil && fw.Version != "" && fw.URL != "" {
		rel.Version = fw.Version
		rel.URL = fw.URL
		rel.HasUpdate = isNewerVersion(c.cfg.CurrentVersion, fw.Version) || fw.Force == 1
		if rel.HasUpdate {
			c.log.Info("ota: new version available", "current", c.cfg.CurrentVersion, "version", fw.Version)
		}
	}
	c.mu.Lock()
	c.challenge = ""
	if act := parsed.Activation; act != nil {
		rel.ActivationCode = act.Code
		rel.ActivationMessage = act.Message
		c.challenge = act.Challenge
	}
	c.mu.Unlock()
	if st := parsed.ServerTime; st != nil {
		rel.ServerTime = st.Timestamp
	}
	return rel, nil
}

// Activate answers the server's activation challenge. Protocol v2 signs
// the challenge with the device key; v1 just confirms the code was shown.
func (c *Client) Activate() error {
	c.mu.Lock()
	challenge := c.challenge
	c.mu.Unlock()

	payload := map[string]string{}
	if c.cfg.SerialNumber != "" {
		if challenge == "" {
			return errors.New("ota: no activation challenge")
		}
		mac := hmac.New(sha256.New, c.cfg.HMACKey)
		mac.Write([]byte(challenge))
		payload["serial_number"] = c.cfg.SerialNumber
		payload["algorithm"] = "hmac-sha256"
		payload["challenge"] = challenge
		payload["hmac"] = hex.EncodeToString(mac.Sum(nil))
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ota: %w", err)
	}
	url := strings.TrimSuffix(c.cfg.CheckURL, "/") + "/activate"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("ota: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ota: activate: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusAccepted:
		return ErrActivationPending
	default:
		return fmt.Errorf("ota: activate: unexpected status %s", resp.Status)
	}
}

// StartUpgrade downloads the release image and hands it to the Apply hook.
// Progress fires about once per second with percent done and bytes per
// second.
func (c *Client) StartUpgrade(rel *device.Release, progress func(percent, speed int)) error {
	if rel == nil || rel.URL == "" {
		return errors.New("ota: release has no download URL")
	}
	c.log.Info("ota: downloading", "url", rel.URL, "version", rel.Version)
	req, err := http.NewRequest(http.MethodGet, rel.URL, nil)
	if err != nil {
		return fmt.Errorf("ota: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ota: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ota: download: unexpected status %s", resp.Status)
	}

	reader := &progressReader{
		r:        resp.Body,
		total:    resp.ContentLength,
		progress: progress,
		lastTick: time.Now(),
	}
	apply := c.cfg.Apply
	if apply == nil {
		apply = func(r io.Reader) error {
			_, err := io.Copy(io.Discard, r)
			return err
		}
	}
	if err := apply(reader); err != nil {
		return fmt.Errorf("ota: apply image: %w", err)
	}
	reader.flush()
	c.log.Info("ota: upgrade downloaded", "bytes", reader.read)
	return nil
}

// MarkCurrentVersionValid confirms the running image so the bootloader
// will not roll back.
func (c *Client) MarkCurrentVersionValid() {
	if c.cfg.MarkValid != nil {
		c.cfg.MarkValid()
	}
}

func (c *Client) setHeaders(req *http.Request) {
	if c.cfg.SerialNumber != "" {
		req.Header.Set("Activation-Version", "2")
		req.Header.Set("Serial-Number", c.cfg.SerialNumber)
	} else {
		req.Header.Set("Activation-Version", "1")
	}
	if c.cfg.DeviceID != "" {
		req.Header.Set("Device-Id", c.cfg.DeviceID)
	}
	if c.cfg.ClientID != "" {
		req.Header.Set("Client-Id", c.cfg.ClientID)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
}

// progressReader reports throughput roughly once per second as the image
// streams through.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	recent   int64
	lastTick time.Time
	progress func(percent, speed int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	p.recent += int64(n)
	if p.progress != nil && time.Since(p.lastTick) >= time.Second {
		p.flush()
	}
	return n, err
}

func (p *progressReader) flush() {
	if p.progress == nil {
		return
	}
	elapsed := time.Since(p.lastTick)
	speed := 0
	if elapsed > 0 {
		speed = int(float64(p.recent) / elapsed.Seconds())
	}
	percent := 0
	if p.total > 0 {
		percent = int(p.read * 100 / p.total)
	}
	p.progress(percent, speed)
	p.lastTick = time.Now()
	p.recent = 0
}
