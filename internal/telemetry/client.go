package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrBadStatus = errors.New("unexpected telemetry response status")

const (
	DefaultBaseURL         = "http://127.0.0.1:24050"
	DefaultStatusTimeout   = 200 * time.Millisecond
	DefaultShowcaseTimeout = 2 * time.Second

	// Upper bound on a payload we are willing to decode.
	maxBodyBytes = 4 << 20
)

type ClientConfig struct {
	BaseURL         string
	StatusTimeout   time.Duration
	ShowcaseTimeout time.Duration
	HTTPClient      *http.Client
}

// Client talks to gosumemory's HTTP endpoints.
type Client struct {
	baseURL         string
	statusTimeout   time.Duration
	showcaseTimeout time.Duration
	http            *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		statusTimeout:   cfg.StatusTimeout,
		showcaseTimeout: cfg.ShowcaseTimeout,
		http:            cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.statusTimeout <= 0 {
		c.statusTimeout = DefaultStatusTimeout
	}
	if c.showcaseTimeout <= 0 {
		c.showcaseTimeout = DefaultShowcaseTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// Status fetches /json. Transport, status and decode failures all come back
// as errors; upstream-reported errors are left in the payload for Normalize.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.getJSON(ctx, "/json", c.statusTimeout, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

type ShowcaseMap struct {
	ID   int    `json:"id"`
	MD5  string `json:"md5"`
	Slot string `json:"slot"`
}

type Showcase struct {
	Maps []ShowcaseMap `json:"maps"`
}

// Showcase fetches /showcase.json, the mappool slot list.
func (c *Client) Showcase(ctx context.Context) (*Showcase, error) {
	var sc Showcase
	if err := c.getJSON(ctx, "/showcase.json", c.showcaseTimeout, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (c *Client) getJSON(ctx context.Context, path string, timeout time.Duration, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%w: %s returned %d", ErrBadStatus, path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
