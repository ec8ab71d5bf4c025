// Package transport delivers pathfinder request envelopes either directly or
// through the ScrapeNinja relay, returning the decoded JSON document in both
// modes.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/podcast-ingest/internal/headers"
	"github.com/JakeFAU/podcast-ingest/internal/metrics"
	"github.com/JakeFAU/podcast-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

// Mode selects how envelopes reach the upstream API.
type Mode string

// Supported transport modes.
const (
	ModeDirect Mode = "direct"
	ModeRelay  Mode = "relay"
)

// Defaults for the upstream and relay endpoints.
const (
	DefaultEndpoint      = "https://api-partner.spotify.com/pathfinder/v2/query"
	DefaultRelayEndpoint = "https://scrapeninja.p.rapidapi.com/scrape"
	DefaultRelayHost     = "scrapeninja.p.rapidapi.com"
	defaultTimeout       = 30 * time.Second
)

// RelayConfig configures the relay path.
type RelayConfig struct {
	Enabled  bool
	Endpoint string
	Host     string
	APIKey   string
}

// Config controls the transport.
type Config struct {
	Endpoint          string
	Relay             RelayConfig
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Sender posts an envelope and returns the decoded response document.
type Sender interface {
	Send(ctx context.Context, hdrs headers.Set, env spotify.Envelope) (map[string]any, error)
}

// Client implements Sender on top of a colly collector.
type Client struct {
	cfg           Config
	mode          Mode
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type response struct {
	status int
	body   []byte
}

// New builds a Client. The mode is fixed for the client's lifetime.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	mode := ModeDirect
	if cfg.Relay.Enabled {
		mode = ModeRelay
		if strings.TrimSpace(cfg.Relay.APIKey) == "" {
			return nil, &spotify.ValidationError{Field: "relay api key", Message: "required when the relay is enabled"}
		}
		if strings.TrimSpace(cfg.Relay.Endpoint) == "" {
			cfg.Relay.Endpoint = DefaultRelayEndpoint
		}
		if strings.TrimSpace(cfg.Relay.Host) == "" {
			cfg.Relay.Host = DefaultRelayHost
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg:           cfg,
		mode:          mode,
		baseCollector: c,
		limiter:       ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond}),
		logger:        logger,
	}, nil
}

// Mode reports whether the client calls upstream directly or via the relay.
func (c *Client) Mode() Mode {
	return c.mode
}

// Send posts env with hdrs and decodes the JSON response.
func (c *Client) Send(ctx context.Context, hdrs headers.Set, env spotify.Envelope) (map[string]any, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.OperationName(), err)
	}

	target, reqHeaders, body, err := c.prepare(hdrs, payload)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, target); err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := c.exchange(ctx, target, reqHeaders, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveUpstream(env.OperationName(), string(c.mode), outcome, time.Since(start))
	if err != nil {
		c.logger.Debug("upstream call failed",
			zap.String("operation", env.OperationName()),
			zap.String("mode", string(c.mode)),
			zap.Error(err),
		)
		return nil, err
	}
	return doc, nil
}

func (c *Client) prepare(hdrs headers.Set, payload []byte) (string, http.Header, []byte, error) {
	if c.mode == ModeDirect {
		return c.cfg.Endpoint, hdrs.HTTPHeader(), payload, nil
	}
	wrapped, err := json.Marshal(map[string]any{
		"url":     c.cfg.Endpoint,
		"method":  http.MethodPost,
		"headers": hdrs.Map(),
		"body":    string(payload),
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("encode relay envelope: %w", err)
	}
	relayHeaders := http.Header{}
	relayHeaders.Set("Content-Type", "application/json")
	relayHeaders.Set("X-Rapidapi-Host", c.cfg.Relay.Host)
	relayHeaders.Set("X-Rapidapi-Key", c.cfg.Relay.APIKey)
	return c.cfg.Relay.Endpoint, relayHeaders, wrapped, nil
}

func (c *Client) exchange(ctx context.Context, target string, hdr http.Header, body []byte) (map[string]any, error) {
	resp, err := c.post(ctx, target, hdr, body)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, &TransportError{Mode: c.mode, Status: resp.status, Body: truncate(string(resp.body), maxErrorBody)}
	}
	if c.mode == ModeRelay {
		return unwrapRelay(resp.body)
	}
	doc, err := decodeObject(resp.body)
	if err != nil {
		return nil, &TransportError{
			Mode:   c.mode,
			Status: resp.status,
			Body:   truncate(string(resp.body), maxErrorBody),
			Err:    err,
		}
	}
	return doc, nil
}

func (c *Client) post(ctx context.Context, target string, hdr http.Header, body []byte) (response, error) {
	collector := c.baseCollector.Clone()
	collector.Context = ctx
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true

	var (
		result   response
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		result = response{status: r.StatusCode, body: append([]byte(nil), r.Body...)}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result = response{status: r.StatusCode, body: append([]byte(nil), r.Body...)}
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(http.MethodPost, target, bytes.NewReader(body), nil, hdr)
	}()

	select {
	case <-ctx.Done():
		return response{}, canceled(c.mode, ctx.Err())
	case err := <-done:
		// The collector shares ctx, so a cancel can also surface here.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return response{}, canceled(c.mode, ctxErr)
		}
		if err == nil {
			err = fetchErr
		}
		if err != nil && result.status == 0 {
			return response{}, &TransportError{Mode: c.mode, Err: err}
		}
		return result, nil
	}
}

func canceled(mode Mode, err error) *TransportError {
	return &TransportError{Mode: mode, Err: fmt.Errorf("request canceled: %w", err)}
}

// unwrapRelay extracts the inner upstream document from a relay envelope.
// The relay reports the inner call's status under info.statusCode.
func unwrapRelay(raw []byte) (map[string]any, error) {
	outer, err := decodeObject(raw)
	if err != nil {
		return nil, &RelayError{Message: "relay envelope is not a JSON object", Err: err}
	}
	if info, ok := outer["info"].(map[string]any); ok {
		if status, ok := info["statusCode"].(float64); ok && (status < 200 || status > 299) {
			inner, _ := outer["body"].(string)
			return nil, &TransportError{Mode: ModeRelay, Status: int(status), Body: truncate(inner, maxErrorBody)}
		}
	}
	inner := outer["body"]
	if inner == nil {
		if nested, ok := outer["result"].(map[string]any); ok {
			inner = nested["body"]
		}
	}
	switch v := inner.(type) {
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, &RelayError{Message: "empty body"}
		}
		doc, err := decodeObject([]byte(v))
		if err != nil {
			return nil, &RelayError{Message: truncate(v, maxErrorBody), Err: err}
		}
		return doc, nil
	default:
		return nil, &RelayError{Message: "missing body"}
	}
}

func decodeObject(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode json: not an object")
	}
	return doc, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
