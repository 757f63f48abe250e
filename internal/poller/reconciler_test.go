package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/victrola-bridge/internal/registry"
	"github.com/strefethen/victrola-bridge/internal/state"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

const testCoreID = "44fe722d-c19d-4786-ab03-e23feb2e6148"

type fakeDevice struct {
	connected bool
	speakers  []victrola.QuickplaySpeaker
	settings  []victrola.TypedValue
	ui        victrola.UIState
	player    victrola.PlayerState

	quickplayErr error
}

func (f *fakeDevice) TestConnection(ctx context.Context) bool { return f.connected }

func (f *fakeDevice) GetQuickplaySpeakers(ctx context.Context) ([]victrola.QuickplaySpeaker, error) {
	return f.speakers, f.quickplayErr
}

func (f *fakeDevice) GetSettingsRows(ctx context.Context) ([]victrola.TypedValue, error) {
	return f.settings, nil
}

func (f *fakeDevice) GetUIState(ctx context.Context) (victrola.UIState, error) {
	return f.ui, nil
}

func (f *fakeDevice) GetPlayerState(ctx context.Context) (victrola.PlayerState, error) {
	return f.player, nil
}

func settingsFixture() []victrola.TypedValue {
	values := make([]victrola.TypedValue, 19)
	values[rowRoonEnabled] = victrola.BoolValue(false)
	values[rowSonosDefaultID] = victrola.StringValue("RINCON_AAA")
	values[rowSonosEnabled] = victrola.BoolValue(true)
	values[rowUPnPEnabled] = victrola.BoolValue(false)
	values[rowBluetoothEnabled] = victrola.BoolValue(false)
	values[rowForceLowBitrate] = victrola.NamedValue("forceLowBitrate", "losslessQuality")
	values[rowKnobBrightness] = victrola.IntValue(80)
	values[rowAutoplay] = victrola.BoolValue(true)
	values[rowBluetoothDefault] = victrola.StringValue(bluetoothUnsetSentinel)
	values[rowAudioLatency] = victrola.NamedValue("adchlsLatency", "med")
	return values
}

func TestRunCycleFoldsDeviceState(t *testing.T) {
	device := &fakeDevice{
		connected: true,
		speakers: []victrola.QuickplaySpeaker{
			{Name: "Living Room", ID: "RINCON_AAA", Preferred: true},
		},
		settings: settingsFixture(),
		ui:       victrola.UIState{DefaultSpeakerName: "Living Room"},
		player:   victrola.PlayerState{Volume: intPtr(40), PowerTarget: "online"},
	}

	shadow := state.New()
	reg := registry.New(testCoreID)
	rec := New(device, shadow, reg, 30*time.Second)

	rec.RunCycle(context.Background())

	snap := shadow.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, victrola.SourceSonos, snap.ActiveSource)
	assert.True(t, snap.SourcesEnabled[victrola.SourceSonos])
	assert.False(t, snap.SourcesEnabled[victrola.SourceRoon])
	assert.Equal(t, "Living Room", snap.CurrentQuickplay)
	assert.Equal(t, "Living Room", snap.DefaultSpeakers[victrola.SourceSonos])
	assert.Equal(t, victrola.QualityHigh, snap.AudioQuality)
	assert.Equal(t, victrola.LatencyMedium, snap.AudioLatency)
	require.NotNil(t, snap.KnobBrightness)
	assert.Equal(t, 80, *snap.KnobBrightness)
	assert.True(t, snap.Autoplay)
	require.NotNil(t, snap.Volume)
	assert.Equal(t, 40, *snap.Volume)
	assert.Equal(t, "online", snap.PowerTarget)
}

func TestRunCycleUnreachableDevice(t *testing.T) {
	device := &fakeDevice{connected: false}
	shadow := state.New()
	shadow.SetConnected(true)

	rec := New(device, shadow, registry.New(testCoreID), 30*time.Second)
	rec.RunCycle(context.Background())

	assert.False(t, shadow.Snapshot().Connected)
}

func TestRunCycleTransportErrorMarksDisconnected(t *testing.T) {
	device := &fakeDevice{
		connected:    true,
		quickplayErr: &victrola.DeviceTimeoutError{Path: victrola.PathSpeakerQuickplay},
	}
	shadow := state.New()

	rec := New(device, shadow, registry.New(testCoreID), 30*time.Second)
	rec.RunCycle(context.Background())

	assert.False(t, shadow.Snapshot().Connected)
}

func TestRunCycleReplacesSonosRegistry(t *testing.T) {
	reg := registry.New(testCoreID)
	reg.UpdateFromQuickplay([]victrola.QuickplaySpeaker{
		{Name: "Stale Speaker", ID: "RINCON_STALE"},
	})

	device := &fakeDevice{
		connected: true,
		speakers: []victrola.QuickplaySpeaker{
			{Name: "Fresh Speaker", ID: "RINCON_FRESH"},
		},
	}

	rec := New(device, state.New(), reg, 30*time.Second)
	rec.RunCycle(context.Background())

	_, ok := reg.Resolve(victrola.SourceSonos, "Stale Speaker")
	assert.False(t, ok)
	_, ok = reg.Resolve(victrola.SourceSonos, "Fresh Speaker")
	assert.True(t, ok)
}

func TestDecodeSettingsRowsRawIDFallback(t *testing.T) {
	values := settingsFixture()
	values[rowSonosDefaultID] = victrola.StringValue("RINCON_ABC")

	device := &fakeDevice{connected: true, settings: values}
	shadow := state.New()

	// Registry has no record for RINCON_ABC; the raw ID becomes the name.
	rec := New(device, shadow, registry.New(testCoreID), 30*time.Second)
	rec.RunCycle(context.Background())

	assert.Equal(t, "RINCON_ABC", shadow.Snapshot().DefaultSpeakers[victrola.SourceSonos])
}

func TestDecodeSettingsRowsBluetoothSentinel(t *testing.T) {
	decoded := decodeSettingsRows(settingsFixture())
	_, ok := decoded.defaultIDs[victrola.SourceBluetooth]
	assert.False(t, ok)
}

func TestDecodeSettingsRowsMalformedRowsSkipped(t *testing.T) {
	values := settingsFixture()
	values[rowKnobBrightness] = victrola.StringValue("not a number")
	values[rowRoonEnabled] = nil

	decoded := decodeSettingsRows(values)
	assert.Nil(t, decoded.brightness)
	assert.Nil(t, decoded.enabled[victrola.SourceRoon])

	// The rest still decodes.
	require.NotNil(t, decoded.enabled[victrola.SourceSonos])
	assert.True(t, *decoded.enabled[victrola.SourceSonos])
}

func TestDecodeSettingsRowsShortSlice(t *testing.T) {
	decoded := decodeSettingsRows([]victrola.TypedValue{nil, victrola.BoolValue(true)})
	require.NotNil(t, decoded.enabled[victrola.SourceRoon])
	assert.True(t, *decoded.enabled[victrola.SourceRoon])
	assert.Empty(t, decoded.latencyLabel)
}

func intPtr(n int) *int { return &n }
