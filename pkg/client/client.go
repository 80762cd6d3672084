package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/gorilla/websocket"
)

// ConfigBuilder provides a fluent API for building physics configurations.
// It starts from the built-in defaults, so only the options that differ need
// to be set.
type ConfigBuilder struct {
	cfg bounce.Config
}

// NewConfig creates a config builder initialised with the default physics.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: bounce.DefaultConfig()}
}

// TickInterval sets the tick cadence in milliseconds.
func (cb *ConfigBuilder) TickInterval(ms int) *ConfigBuilder {
	cb.cfg.TickIntervalMs = ms
	return cb
}

// BodyRadius sets the radius used to place bodies on the initial grid.
func (cb *ConfigBuilder) BodyRadius(r float64) *ConfigBuilder {
	cb.cfg.BodyRadius = r
	return cb
}

// CollisionDiameter sets the distance at which two bodies collide and the
// extent kept away from the field edges.
func (cb *ConfigBuilder) CollisionDiameter(d float64) *ConfigBuilder {
	cb.cfg.CollisionDiameter = d
	return cb
}

// Grid sets the grid spacing and the number of rows of the initial layout.
func (cb *ConfigBuilder) Grid(spacing float64, rows int) *ConfigBuilder {
	cb.cfg.GridSpacing = spacing
	cb.cfg.RowCount = rows
	return cb
}

// RotationIncrement sets how many degrees each body turns per tick.
func (cb *ConfigBuilder) RotationIncrement(deg float64) *ConfigBuilder {
	cb.cfg.RotationIncrementDeg = deg
	return cb
}

// VelocityRange bounds each initial velocity component, in units per tick.
func (cb *ConfigBuilder) VelocityRange(min, max float64) *ConfigBuilder {
	cb.cfg.VelocityRange = bounce.VelocityRange{Min: min, Max: max}
	return cb
}

// Build returns the configuration without validating it.
func (cb *ConfigBuilder) Build() bounce.Config {
	return cb.cfg
}

// Validate builds the configuration and reports every invalid option.
func (cb *ConfigBuilder) Validate() (bounce.Config, error) {
	cfg := cb.Build()
	if err := cfg.Validate(); err != nil {
		return bounce.Config{}, err
	}
	return cfg, nil
}

// CreateRequest describes a simulation to create on the server.
type CreateRequest struct {
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
	Seed   *int64         `json:"seed,omitempty"`
	Config *bounce.Config `json:"config,omitempty"`
}

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a bounce-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		dialer:     websocket.DefaultDialer,
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// ListSimulations returns the IDs of all simulations on the server.
func (c *Client) ListSimulations(ctx context.Context) ([]string, error) {
	var resp struct {
		Simulations []string `json:"simulations"`
	}
	if err := c.do(ctx, http.MethodGet, "/sims", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Simulations, nil
}

// CreateSimulation creates a simulation and returns its initial frame.
func (c *Client) CreateSimulation(ctx context.Context, simID string, req CreateRequest) (bounce.Frame, error) {
	var frame bounce.Frame
	err := c.do(ctx, http.MethodPost, simPath(simID, ""), req, &frame)
	return frame, err
}

// DeleteSimulation stops and removes a simulation.
func (c *Client) DeleteSimulation(ctx context.Context, simID string) error {
	return c.do(ctx, http.MethodDelete, simPath(simID, ""), nil, nil)
}

// Resize lays the simulation out again on a field of the given size.
func (c *Client) Resize(ctx context.Context, simID string, width, height float64) (bounce.Frame, error) {
	var frame bounce.Frame
	err := c.do(ctx, http.MethodPost, simPath(simID, "resize"), bounce.Field{Width: width, Height: height}, &frame)
	return frame, err
}

// Tick advances the simulation by exactly one tick.
func (c *Client) Tick(ctx context.Context, simID string) (bounce.Frame, error) {
	var frame bounce.Frame
	err := c.do(ctx, http.MethodPost, simPath(simID, "tick"), nil, &frame)
	return frame, err
}

// Start runs the simulation on the server. A zero intervalMs uses the
// simulation's configured tick interval.
func (c *Client) Start(ctx context.Context, simID string, intervalMs int) error {
	p := simPath(simID, "start")
	if intervalMs > 0 {
		p += "?interval=" + strconv.Itoa(intervalMs)
	}
	return c.do(ctx, http.MethodPost, p, nil, nil)
}

// Stop halts the simulation's tick loop.
func (c *Client) Stop(ctx context.Context, simID string) error {
	return c.do(ctx, http.MethodPost, simPath(simID, "stop"), nil, nil)
}

// Frame returns the last complete frame of the simulation.
func (c *Client) Frame(ctx context.Context, simID string) (bounce.Frame, error) {
	var frame bounce.Frame
	err := c.do(ctx, http.MethodGet, simPath(simID, "frame"), nil, &frame)
	return frame, err
}

// Bodies returns the published body tuples of the last frame.
func (c *Client) Bodies(ctx context.Context, simID string) ([]bounce.BodyState, error) {
	var resp struct {
		Bodies []bounce.BodyState `json:"bodies"`
	}
	if err := c.do(ctx, http.MethodGet, simPath(simID, "bodies"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bodies, nil
}

// SaveSnapshot asks the server to persist the simulation and returns the file path.
func (c *Client) SaveSnapshot(ctx context.Context, simID string) (string, error) {
	var resp struct {
		Path string `json:"path"`
	}
	if err := c.do(ctx, http.MethodPost, simPath(simID, "snapshot"), nil, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Snapshot fetches the last saved snapshot of the simulation.
func (c *Client) Snapshot(ctx context.Context, simID string) (bounce.Snapshot, error) {
	var snapshot bounce.Snapshot
	err := c.do(ctx, http.MethodGet, simPath(simID, "snapshot"), nil, &snapshot)
	return snapshot, err
}

// Stream subscribes to the simulation's frames over WebSocket and calls fn
// for each one until ctx is cancelled, the connection drops or fn returns an
// error. An empty simID subscribes to every simulation.
func (c *Client) Stream(ctx context.Context, simID string, fn func(bounce.Frame) error) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if simID == "" {
		u.Path = "/stream"
	} else {
		u.Path = simPath(simID, "stream")
	}

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream closed: %w", err)
		}

		var frame bounce.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("failed to decode frame: %w", err)
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}

// RegisterWebhook registers a webhook notifier receiving every frame.
func (c *Client) RegisterWebhook(ctx context.Context, id, target string, headers map[string]string) error {
	config := map[string]any{"url": target}
	if len(headers) > 0 {
		config["headers"] = headers
	}
	body := map[string]any{"type": "webhook", "id": id, "config": config}
	return c.do(ctx, http.MethodPost, "/notifiers", body, nil)
}

// UnregisterNotifier removes a notifier from the server.
func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifiers/"+url.PathEscape(id), nil, nil)
}

func simPath(simID, action string) string {
	p := "/sim/" + url.PathEscape(simID)
	if action != "" {
		p += "/" + action
	}
	return p
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
