package victrola

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client issues JSON-over-HTTP calls against a Victrola Stream device.
// The client is stateless; all device state lives in the state shadow.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	timeout         time.Duration
	activateTimeout time.Duration

	// Time function for _nocache stamps, swappable in tests.
	now func() time.Time
}

// NewClient creates a device client for the given host and port.
// Uses connection pooling since the poll reconciler and event listener issue
// frequent small requests against the same host.
func NewClient(host string, port int, timeout, activateTimeout time.Duration) *Client {
	return &Client{
		baseURL:         fmt.Sprintf("http://%s:%d", host, port),
		timeout:         timeout,
		activateTimeout: activateTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
}

// BaseURL returns the device base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) nocache() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// =============================================================================
// Low-level transport
// =============================================================================

func (c *Client) postJSON(ctx context.Context, path, endpoint string, payload any, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &DeviceTimeoutError{Path: path}
		}
		return nil, &DeviceUnreachableError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeviceUnreachableError{Path: path, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &DeviceRejectedError{Path: path, Status: resp.StatusCode, Body: truncate(string(data), 200)}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path, rawURL string, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, &DeviceTimeoutError{Path: path}
		}
		return nil, 0, &DeviceUnreachableError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &DeviceUnreachableError{Path: path, Err: err}
	}
	return data, resp.StatusCode, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// =============================================================================
// Core RPCs
// =============================================================================

// TestConnection performs a lightweight read to check the device is reachable.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.postJSON(ctx, "settings:/", "/api/getData", map[string]any{
		"path":  "settings:/",
		"roles": []string{"value"},
	}, c.timeout)
	return err == nil
}

// GetData reads a single path's value. Returns nil without error when the
// device answers with a null entry (the path exists but carries no value).
func (c *Client) GetData(ctx context.Context, path string) (TypedValue, error) {
	data, err := c.postJSON(ctx, path, "/api/getData", map[string]any{
		"path":  path,
		"roles": []string{"value"},
	}, c.timeout)
	if err != nil {
		return nil, err
	}

	var entries []TypedValue
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("getData %s: malformed response: %w", path, err)
	}
	if len(entries) == 0 || entries[0] == nil {
		return nil, nil
	}
	return entries[0], nil
}

// SetData writes a value (role "value") or triggers an action (role
// "activate"). Activate calls carry a _nocache stamp, matching the vendor UI.
func (c *Client) SetData(ctx context.Context, path, role string, value TypedValue) error {
	payload := map[string]any{
		"path":     path,
		"role":     role,
		"value":    value,
		"platform": "other",
	}
	timeout := c.timeout
	if role == "activate" {
		payload["_nocache"] = c.nocache()
		timeout = c.activateTimeout
	}
	_, err := c.postJSON(ctx, path, "/api/setData", payload, timeout)
	return err
}

// GetRows fetches a row container. Each entry's shape depends on the path:
// positional typed-value arrays for settings containers, tagged objects for
// the UI and quickplay trees, so rows are returned raw.
func (c *Client) GetRows(ctx context.Context, path string, from, to int) ([]json.RawMessage, error) {
	data, err := c.postJSON(ctx, path, "/api/getRows", map[string]any{
		"path":  path,
		"roles": []string{"value"},
		"from":  from,
		"to":    to,
	}, c.timeout)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Rows []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("getRows %s: malformed response: %w", path, err)
	}
	return envelope.Rows, nil
}

func (c *Client) getRowsStructured(ctx context.Context, path string, from, to int) ([]SpeakerRow, error) {
	rawURL := fmt.Sprintf("%s/api/getRows?path=%s&roles=%%40all&from=%d&to=%d&type=structure&_nocache=%s",
		c.baseURL, url.QueryEscape(path), from, to, c.nocache())

	data, status, err := c.getJSON(ctx, path, rawURL, c.activateTimeout)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &DeviceRejectedError{Path: path, Status: status}
	}

	var envelope struct {
		Rows []SpeakerRow `json:"rows"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("getRows %s: malformed response: %w", path, err)
	}
	return envelope.Rows, nil
}

// =============================================================================
// Structured reads
// =============================================================================

// GetQuickplaySpeakers reads the device's live speaker list from the
// speakerQuickplay tree. This is the authoritative Sonos registry source.
func (c *Client) GetQuickplaySpeakers(ctx context.Context) ([]QuickplaySpeaker, error) {
	rows, err := c.getRowsStructured(ctx, PathSpeakerQuickplay, 0, 65535)
	if err != nil {
		return nil, err
	}
	return NormalizeSpeakerRows(rows), nil
}

// GetUIState reads the generic UI tree and extracts the speakerSelection row
// title (the device-reported default-speaker display name) and autoplay.
func (c *Client) GetUIState(ctx context.Context) (UIState, error) {
	rows, err := c.getRowsStructured(ctx, PathUIRoot, 0, 30)
	if err != nil {
		return UIState{}, err
	}

	var state UIState
	for _, row := range rows {
		switch row.Path {
		case PathSpeakerSelection:
			if row.Title != "" {
				state.DefaultSpeakerName = row.Title
			}
		case PathAutoplay:
			if b, ok := row.Value.Bool(); ok {
				autoplay := b
				state.Autoplay = &autoplay
			}
		}
	}
	return state, nil
}

// GetSettingsRows reads the positional settings container. The result is
// index-addressed: entry i is the first typed value of row i, or nil when the
// row is missing or not in the expected shape. Meaning is assigned by the
// poller's row table, not here.
func (c *Client) GetSettingsRows(ctx context.Context) ([]TypedValue, error) {
	raw, err := c.GetRows(ctx, PathSettingsRoot, 0, 18)
	if err != nil {
		return nil, err
	}

	values := make([]TypedValue, len(raw))
	for i, row := range raw {
		var cells []TypedValue
		if err := json.Unmarshal(row, &cells); err != nil {
			continue
		}
		if len(cells) > 0 && cells[0] != nil {
			values[i] = cells[0]
		}
	}
	return values, nil
}

// GetPlayerState reads player volume and the power target.
func (c *Client) GetPlayerState(ctx context.Context) (PlayerState, error) {
	var state PlayerState

	volume, err := c.getDataStructured(ctx, PathVolume)
	if err != nil {
		return state, err
	}
	if v, ok := volume.Int(); ok && volume.Type() == "i32_" {
		state.Volume = &v
	}

	power, err := c.getDataStructured(ctx, PathPowerTarget)
	if err != nil {
		return state, err
	}
	if target, reason, ok := power.PowerTarget(); ok {
		state.PowerTarget = target
		state.PowerReason = reason
	}
	return state, nil
}

func (c *Client) getDataStructured(ctx context.Context, path string) (TypedValue, error) {
	rawURL := fmt.Sprintf("%s/api/getData?path=%s&roles=%%40all&type=structure&_nocache=%s",
		c.baseURL, url.QueryEscape(path), c.nocache())

	data, status, err := c.getJSON(ctx, path, rawURL, c.timeout)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &DeviceRejectedError{Path: path, Status: status}
	}

	var envelope struct {
		Value TypedValue `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("getData %s: malformed response: %w", path, err)
	}
	if envelope.Value == nil {
		return TypedValue{}, nil
	}
	return envelope.Value, nil
}

// =============================================================================
// Commands
// =============================================================================

// Quickplay selects a speaker and starts audio immediately.
func (c *Client) Quickplay(ctx context.Context, typeName, speakerID string) error {
	return c.SetData(ctx, PathQuickplay, "activate", OutputValue(typeName, speakerID))
}

// SetDefaultOutput sets the speaker a source will use next, without playback.
func (c *Client) SetDefaultOutput(ctx context.Context, typeName, speakerID string) error {
	return c.SetData(ctx, PathSetDefaultOutput, "activate", OutputValue(typeName, speakerID))
}

// SetAudioQuality writes the forceLowBitrate setting. apiValue is one of
// connectionQuality / soundQuality / losslessQuality.
func (c *Client) SetAudioQuality(ctx context.Context, apiValue string) error {
	return c.SetData(ctx, PathAudioQuality, "value", NamedValue("forceLowBitrate", apiValue))
}

// SetAudioLatency writes the wirelessAudioDelay setting. apiValue is one of
// min / med / high / max.
func (c *Client) SetAudioLatency(ctx context.Context, apiValue string) error {
	return c.SetData(ctx, PathAudioLatency, "value", NamedValue("adchlsLatency", apiValue))
}

// SetKnobBrightness writes the knob LED brightness, clamped to [0,100].
func (c *Client) SetKnobBrightness(ctx context.Context, brightness int) error {
	return c.SetData(ctx, PathKnobBrightness, "value", IntValue(clamp(brightness, 0, 100)))
}

// SetSourceEnabled flips a source's enable flag.
func (c *Client) SetSourceEnabled(ctx context.Context, source Source, enabled bool) error {
	path, ok := SourceEnabledPaths[source]
	if !ok {
		return fmt.Errorf("unknown source: %s", source)
	}
	return c.SetData(ctx, path, "value", BoolValue(enabled))
}

// SetAutoplay flips the autoplay setting.
func (c *Client) SetAutoplay(ctx context.Context, enabled bool) error {
	return c.SetData(ctx, PathAutoplay, "value", BoolValue(enabled))
}

// SetVolume writes the player volume, clamped to [0,100].
func (c *Client) SetVolume(ctx context.Context, volume int) error {
	return c.SetData(ctx, PathVolume, "value", IntValue(clamp(volume, 0, 100)))
}

// SetMute flips the media player mute flag.
func (c *Client) SetMute(ctx context.Context, muted bool) error {
	return c.SetData(ctx, PathMute, "value", BoolValue(muted))
}

// Reboot restarts the device.
func (c *Client) Reboot(ctx context.Context) error {
	return c.SetData(ctx, PathReboot, "activate", BoolValue(true))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// =============================================================================
// Event queue
// =============================================================================

// SubscribeQueue registers a push queue under queueID and subscribes it to the
// given paths. The device treats the queue ID as caller-assigned: the first
// call with an empty ID primes the event system, the second binds our ID.
func (c *Client) SubscribeQueue(ctx context.Context, queueID string, subs []EventSubscription) error {
	if _, err := c.postJSON(ctx, "event:modifyQueue", "/api/event/modifyQueue", map[string]any{
		"queueId":     "",
		"subscribe":   []EventSubscription{},
		"unsubscribe": []EventSubscription{},
		"_nocache":    c.nocache(),
	}, c.activateTimeout); err != nil {
		return err
	}

	_, err := c.postJSON(ctx, "event:modifyQueue", "/api/event/modifyQueue", map[string]any{
		"queueId":     queueID,
		"subscribe":   subs,
		"unsubscribe": []EventSubscription{},
		"_nocache":    c.nocache(),
	}, c.activateTimeout)
	return err
}

// UnsubscribeQueue removes the queue's subscriptions on the device.
func (c *Client) UnsubscribeQueue(ctx context.Context, queueID string, subs []EventSubscription) error {
	_, err := c.postJSON(ctx, "event:modifyQueue", "/api/event/modifyQueue", map[string]any{
		"queueId":     queueID,
		"subscribe":   []EventSubscription{},
		"unsubscribe": subs,
		"_nocache":    c.nocache(),
	}, c.timeout)
	return err
}

// PollEvents long-polls the queue for up to pollTimeout. An empty slice is
// the normal idle result. Returns ErrQueueExpired on 404, meaning the device
// dropped the queue and the caller must resubscribe.
func (c *Client) PollEvents(ctx context.Context, queueID string, pollTimeout time.Duration) ([]Event, error) {
	rawURL := fmt.Sprintf("%s/api/event/pollQueue?queueId=%s&timeout=%d&_nocache=%s",
		c.baseURL, url.QueryEscape(queueID), pollTimeout.Milliseconds(), c.nocache())

	// Give the HTTP request headroom beyond the device-side wait.
	data, status, err := c.getJSON(ctx, "event:pollQueue", rawURL, pollTimeout+3*time.Second)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var events []Event
		if err := json.Unmarshal(data, &events); err != nil {
			// Non-array payloads mean no events, not a failure.
			return nil, nil
		}
		return events, nil
	case http.StatusNotFound:
		return nil, ErrQueueExpired
	default:
		return nil, &DeviceRejectedError{Path: "event:pollQueue", Status: status}
	}
}
