package poller

import (
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// The settings container is positional: firmware returns rows by index, not
// by path, so each index is hard-bound to a field here. Indexes observed on
// firmware 1.x; unknown rows are ignored so firmware additions don't break
// the decode.
const (
	rowRoonEnabled      = 1
	rowSonosDefaultID   = 2
	rowRoonDefaultID    = 3
	rowSonosEnabled     = 4
	rowUPnPEnabled      = 5
	rowBluetoothEnabled = 6
	rowForceLowBitrate  = 7
	rowKnobBrightness   = 10
	rowAutoplay         = 11
	rowBluetoothDefault = 12
	rowUPnPDefaultID    = 15
	rowAudioLatency     = 18
)

// bluetoothUnsetSentinel is what row 12 carries when no Bluetooth default is
// paired: the firmware echoes the setting path instead of a device ID.
const bluetoothUnsetSentinel = "settings:/victrola/bluetoothEnabled"

// settingsDecode is the typed view of one settings container read. Pointer
// fields stay nil when the row was absent or malformed.
type settingsDecode struct {
	enabled map[victrola.Source]*bool

	defaultIDs map[victrola.Source]string

	qualityLabel string
	latencyLabel string
	brightness   *int
	autoplay     *bool
}

// decodeSettingsRows maps positional typed values onto named fields.
func decodeSettingsRows(values []victrola.TypedValue) settingsDecode {
	decoded := settingsDecode{
		enabled:    make(map[victrola.Source]*bool, 4),
		defaultIDs: make(map[victrola.Source]string, 4),
	}

	boolAt := func(i int) *bool {
		if i >= len(values) || values[i] == nil {
			return nil
		}
		if b, ok := values[i].Bool(); ok {
			return &b
		}
		return nil
	}
	strAt := func(i int) string {
		if i >= len(values) || values[i] == nil {
			return ""
		}
		if s, ok := values[i].Str(); ok {
			return s
		}
		return ""
	}

	decoded.enabled[victrola.SourceRoon] = boolAt(rowRoonEnabled)
	decoded.enabled[victrola.SourceSonos] = boolAt(rowSonosEnabled)
	decoded.enabled[victrola.SourceUPnP] = boolAt(rowUPnPEnabled)
	decoded.enabled[victrola.SourceBluetooth] = boolAt(rowBluetoothEnabled)

	if id := strAt(rowSonosDefaultID); id != "" {
		decoded.defaultIDs[victrola.SourceSonos] = id
	}
	if id := strAt(rowRoonDefaultID); id != "" {
		decoded.defaultIDs[victrola.SourceRoon] = id
	}
	if id := strAt(rowUPnPDefaultID); id != "" {
		decoded.defaultIDs[victrola.SourceUPnP] = id
	}
	if id := strAt(rowBluetoothDefault); id != "" && id != bluetoothUnsetSentinel {
		decoded.defaultIDs[victrola.SourceBluetooth] = id
	}

	if rowForceLowBitrate < len(values) && values[rowForceLowBitrate] != nil {
		if api, ok := values[rowForceLowBitrate].Named("forceLowBitrate"); ok {
			decoded.qualityLabel = victrola.AudioQualityAPIToLabel[api]
		}
	}
	if rowAudioLatency < len(values) && values[rowAudioLatency] != nil {
		if api, ok := values[rowAudioLatency].Named("adchlsLatency"); ok {
			decoded.latencyLabel = victrola.AudioLatencyAPIToLabel[api]
		}
	}
	if rowKnobBrightness < len(values) && values[rowKnobBrightness] != nil {
		if n, ok := values[rowKnobBrightness].Int(); ok {
			decoded.brightness = &n
		}
	}
	decoded.autoplay = boolAt(rowAutoplay)

	return decoded
}
