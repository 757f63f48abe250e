package victrola

import (
	"encoding/json"
	"strings"
)

// Source is one of the device's speaker-providing subsystems.
type Source string

const (
	SourceRoon      Source = "Roon"
	SourceSonos     Source = "Sonos"
	SourceUPnP      Source = "UPnP"
	SourceBluetooth Source = "Bluetooth"
)

// Sources lists all backends in display order.
var Sources = []Source{SourceRoon, SourceSonos, SourceUPnP, SourceBluetooth}

// ParseSource maps a case-insensitive name to a Source.
func ParseSource(name string) (Source, bool) {
	for _, source := range Sources {
		if strings.EqualFold(string(source), name) {
			return source, true
		}
	}
	return "", false
}

// Device paths.
const (
	PathQuickplay        = "victrola:ui/quickplay"
	PathSetDefaultOutput = "victrola:ui/setDefaultOutput"
	PathSpeakerQuickplay = "victrola:ui/speakerQuickplay"
	PathSpeakerSelection = "victrola:ui/speakerSelection"
	PathAudioQuality     = "settings:/victrola/forceLowBitrate"
	PathAudioLatency     = "settings:/victrola/wirelessAudioDelay"
	PathKnobBrightness   = "settings:/victrola/lightBrightness"
	PathRoonEnabled      = "settings:/victrola/roonEnabled"
	PathSonosEnabled     = "settings:/victrola/sonosEnabled"
	PathUPnPEnabled      = "settings:/victrola/upnpEnabled"
	PathBluetoothEnabled = "settings:/victrola/bluetoothEnabled"
	PathAutoplay         = "settings:/victrola/autoplay"
	PathMute             = "settings:/mediaPlayer/mute"
	PathVolume           = "player:volume"
	PathPowerTarget      = "powermanager:target"
	PathReboot           = "powermanager:goReboot"
	PathSettingsRoot     = "settings:/victrola"
	PathUIRoot           = "ui:"
)

// SourceEnabledPaths maps each source to its enable-flag setting path.
var SourceEnabledPaths = map[Source]string{
	SourceRoon:      PathRoonEnabled,
	SourceSonos:     PathSonosEnabled,
	SourceUPnP:      PathUPnPEnabled,
	SourceBluetooth: PathBluetoothEnabled,
}

// SourceForEnabledPath is the reverse of SourceEnabledPaths.
func SourceForEnabledPath(path string) (Source, bool) {
	for source, p := range SourceEnabledPaths {
		if p == path {
			return source, true
		}
	}
	return "", false
}

// setData value type names for default-output and quickplay activations.
var defaultOutputTypes = map[Source]string{
	SourceRoon:      "victrolaOutputRoon",
	SourceSonos:     "victrolaOutputSonos",
	SourceUPnP:      "victrolaOutputUpnp",
	SourceBluetooth: "victrolaOutputBluetooth",
}

var quickplayTypes = map[Source]string{
	SourceRoon:      "victrolaQuickplayRoon",
	SourceSonos:     "victrolaQuickplaySonos",
	SourceUPnP:      "victrolaQuickplayUPnP",
	SourceBluetooth: "victrolaQuickplayBluetooth",
}

// DefaultOutputType returns the activate value type for setDefaultOutput.
func DefaultOutputType(source Source) string { return defaultOutputTypes[source] }

// QuickplayType returns the activate value type for quickplay.
func QuickplayType(source Source) string { return quickplayTypes[source] }

// Audio quality labels and their wire values.
const (
	QualityLow      = "Low"
	QualityStandard = "Standard"
	QualityHigh     = "High"
)

var AudioQualityLabels = []string{QualityLow, QualityStandard, QualityHigh}

var AudioQualityLabelToAPI = map[string]string{
	QualityLow:      "connectionQuality",
	QualityStandard: "soundQuality",
	QualityHigh:     "losslessQuality",
}

var AudioQualityAPIToLabel = invert(AudioQualityLabelToAPI)

// Audio latency labels and their wire values.
const (
	LatencyLow    = "Low"
	LatencyMedium = "Medium"
	LatencyHigh   = "High"
	LatencyMax    = "Max"
)

var AudioLatencyLabels = []string{LatencyLow, LatencyMedium, LatencyHigh, LatencyMax}

var AudioLatencyLabelToAPI = map[string]string{
	LatencyLow:    "min",
	LatencyMedium: "med",
	LatencyHigh:   "high",
	LatencyMax:    "max",
}

var AudioLatencyAPIToLabel = invert(AudioLatencyLabelToAPI)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// =============================================================================
// Typed value envelopes
// =============================================================================

// TypedValue is the device's self-describing value envelope:
// {"type": "bool_", "bool_": true}, {"type": "i32_", "i32_": 75},
// {"type": "forceLowBitrate", "forceLowBitrate": "soundQuality"}, etc.
// The payload key always repeats the type name.
type TypedValue map[string]any

// Type returns the envelope's type tag, or "" when absent.
func (v TypedValue) Type() string {
	t, _ := v["type"].(string)
	return t
}

// Bool extracts a bool_ payload.
func (v TypedValue) Bool() (bool, bool) {
	b, ok := v["bool_"].(bool)
	return b, ok
}

// Int extracts an i32_ payload. JSON numbers arrive as float64.
func (v TypedValue) Int() (int, bool) {
	switch n := v["i32_"].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// Str extracts a string_ payload.
func (v TypedValue) Str() (string, bool) {
	s, ok := v["string_"].(string)
	return s, ok
}

// Named extracts a named-setting payload, e.g. Named("forceLowBitrate").
func (v TypedValue) Named(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// PowerTarget extracts a powerTarget payload's target and reason.
func (v TypedValue) PowerTarget() (target, reason string, ok bool) {
	pt, found := v["powerTarget"].(map[string]any)
	if !found {
		return "", "", false
	}
	target, _ = pt["target"].(string)
	reason, _ = pt["reason"].(string)
	return target, reason, target != ""
}

// BoolValue builds a bool_ envelope.
func BoolValue(b bool) TypedValue {
	return TypedValue{"type": "bool_", "bool_": b}
}

// IntValue builds an i32_ envelope.
func IntValue(i int) TypedValue {
	return TypedValue{"type": "i32_", "i32_": i}
}

// StringValue builds a string_ envelope.
func StringValue(s string) TypedValue {
	return TypedValue{"type": "string_", "string_": s}
}

// NamedValue builds an envelope for named settings like forceLowBitrate.
func NamedValue(name, value string) TypedValue {
	return TypedValue{"type": name, name: value}
}

// OutputValue builds the activate payload for quickplay/setDefaultOutput.
func OutputValue(typeName, speakerID string) TypedValue {
	return TypedValue{"type": typeName, "id": speakerID}
}

// =============================================================================
// Row shapes
// =============================================================================

// SpeakerRow is a tagged-object row from the quickplay and UI trees.
type SpeakerRow struct {
	Title     string     `json:"title"`
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	Type      string     `json:"type"`
	Preferred bool       `json:"preferred"`
	Value     TypedValue `json:"value"`
}

// SonosGroupID digs the full group ID out of a sonosGroup value, if present.
func (r SpeakerRow) SonosGroupID() string {
	if r.Value.Type() != "sonosGroup" {
		return ""
	}
	sg, ok := r.Value["sonosGroup"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := sg["sonosGroupId"].(string)
	return id
}

// QuickplaySpeaker is a normalized speaker entry from speakerQuickplay rows.
type QuickplaySpeaker struct {
	Name         string `json:"name"`
	ID           string `json:"id"`
	Path         string `json:"path"`
	Type         string `json:"type"`
	Preferred    bool   `json:"preferred"`
	SonosGroupID string `json:"sonos_group_id,omitempty"`
}

// NormalizeSpeakerRows converts raw quickplay rows into speaker entries.
// Rows missing a title or id are dropped rather than surfaced as errors.
func NormalizeSpeakerRows(rows []SpeakerRow) []QuickplaySpeaker {
	speakers := make([]QuickplaySpeaker, 0, len(rows))
	for _, row := range rows {
		if row.Title == "" || row.ID == "" {
			continue
		}
		speakers = append(speakers, QuickplaySpeaker{
			Name:         row.Title,
			ID:           row.ID,
			Path:         row.Path,
			Type:         row.Type,
			Preferred:    row.Preferred,
			SonosGroupID: row.SonosGroupID(),
		})
	}
	return speakers
}

// =============================================================================
// Events
// =============================================================================

// EventSubscription names one path on the device's push queue.
type EventSubscription struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// EventSubscriptions is the fixed allow-list of paths the listener tracks.
var EventSubscriptions = []EventSubscription{
	{Path: PathSpeakerSelection, Type: "rows"},
	{Path: PathSpeakerQuickplay, Type: "rows"},
	{Path: PathAutoplay, Type: "itemWithValue"},
	{Path: PathPowerTarget, Type: "itemWithValue"},
	{Path: PathVolume, Type: "itemWithValue"},
	{Path: PathRoonEnabled, Type: "itemWithValue"},
	{Path: PathSonosEnabled, Type: "itemWithValue"},
	{Path: PathUPnPEnabled, Type: "itemWithValue"},
	{Path: PathBluetoothEnabled, Type: "itemWithValue"},
	{Path: PathAudioQuality, Type: "itemWithValue"},
	{Path: PathAudioLatency, Type: "itemWithValue"},
	{Path: PathKnobBrightness, Type: "itemWithValue"},
	{Path: PathMute, Type: "itemWithValue"},
}

// Event is one changed-path notification from pollQueue.
type Event struct {
	Path  string          `json:"path"`
	Type  string          `json:"type"`
	Value TypedValue      `json:"value"`
	Rows  json.RawMessage `json:"rows"`
}

// SpeakerRows decodes the rows payload of a rows-typed event.
// Returns nil on malformed payloads; the event is then skipped.
func (e Event) SpeakerRows() []SpeakerRow {
	if len(e.Rows) == 0 {
		return nil
	}
	var rows []SpeakerRow
	if err := json.Unmarshal(e.Rows, &rows); err != nil {
		return nil
	}
	return rows
}

// UIState is the subset of the generic UI tree the bridge cares about.
type UIState struct {
	// DefaultSpeakerName is the title of the speakerSelection row — the
	// device-reported authoritative display name.
	DefaultSpeakerName string
	Autoplay           *bool
}

// PlayerState holds the player volume and power target reads.
type PlayerState struct {
	Volume      *int
	PowerTarget string
	PowerReason string
}
