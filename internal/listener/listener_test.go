package listener

import (
	"context"
	"encoding/json"
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
	ui victrola.UIState
}

func (f *fakeDevice) SubscribeQueue(ctx context.Context, queueID string, subs []victrola.EventSubscription) error {
	return nil
}

func (f *fakeDevice) UnsubscribeQueue(ctx context.Context, queueID string, subs []victrola.EventSubscription) error {
	return nil
}

func (f *fakeDevice) PollEvents(ctx context.Context, queueID string, pollTimeout time.Duration) ([]victrola.Event, error) {
	return nil, nil
}

func (f *fakeDevice) GetUIState(ctx context.Context) (victrola.UIState, error) {
	return f.ui, nil
}

func newTestListener(device deviceAPI) (*Listener, *state.Shadow, *registry.Registry) {
	shadow := state.New()
	reg := registry.New(testCoreID)
	l := New(device, shadow, reg, 1500*time.Millisecond, 5*time.Second, 3)
	return l, shadow, reg
}

func TestApplyVolumeEvent(t *testing.T) {
	l, shadow, _ := newTestListener(&fakeDevice{})

	changed := l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathVolume, Value: victrola.IntValue(75)},
	})

	assert.True(t, changed)
	require.NotNil(t, shadow.Snapshot().Volume)
	assert.Equal(t, 75, *shadow.Snapshot().Volume)
}

func TestApplyUnknownPathNoChange(t *testing.T) {
	l, _, _ := newTestListener(&fakeDevice{})

	changed := l.apply(context.Background(), []victrola.Event{
		{Path: "settings:/victrola/somethingNew", Value: victrola.BoolValue(true)},
	})

	assert.False(t, changed)
}

func TestApplyMalformedEventSkipped(t *testing.T) {
	l, shadow, _ := newTestListener(&fakeDevice{})
	shadow.SetVolume(20)

	changed := l.apply(context.Background(), []victrola.Event{
		// Wrong payload type for a volume event.
		{Path: victrola.PathVolume, Value: victrola.StringValue("loud")},
		// Valid event in the same batch still applies.
		{Path: victrola.PathMute, Value: victrola.BoolValue(true)},
	})

	assert.True(t, changed)
	snap := shadow.Snapshot()
	require.NotNil(t, snap.Volume)
	assert.Equal(t, 20, *snap.Volume)
	assert.True(t, snap.Muted)
}

func TestApplyQuickplayRowsReplacesRegistry(t *testing.T) {
	l, shadow, reg := newTestListener(&fakeDevice{})
	reg.UpdateFromQuickplay([]victrola.QuickplaySpeaker{
		{Name: "Old", ID: "RINCON_OLD"},
	})

	rows, err := json.Marshal([]victrola.SpeakerRow{
		{Title: "New Speaker", ID: "RINCON_NEW", Preferred: true},
	})
	require.NoError(t, err)

	changed := l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathSpeakerQuickplay, Type: "rows", Rows: rows},
	})

	assert.True(t, changed)
	_, ok := reg.Resolve(victrola.SourceSonos, "Old")
	assert.False(t, ok)
	_, ok = reg.Resolve(victrola.SourceSonos, "New Speaker")
	assert.True(t, ok)
	assert.Equal(t, "New Speaker", shadow.Snapshot().CurrentQuickplay)
}

func TestApplySpeakerSelectionRefetchesUITree(t *testing.T) {
	device := &fakeDevice{ui: victrola.UIState{DefaultSpeakerName: "Kitchen"}}
	l, shadow, _ := newTestListener(device)
	shadow.SetActiveSource(victrola.SourceSonos)

	changed := l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathSpeakerSelection, Type: "rows"},
	})

	assert.True(t, changed)
	assert.Equal(t, "Kitchen", shadow.Snapshot().DefaultSpeakers[victrola.SourceSonos])
}

func TestApplySourceEnabledSetsActive(t *testing.T) {
	l, shadow, _ := newTestListener(&fakeDevice{})
	shadow.SetActiveSource(victrola.SourceSonos)

	changed := l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathRoonEnabled, Value: victrola.BoolValue(true)},
	})

	assert.True(t, changed)
	snap := shadow.Snapshot()
	assert.True(t, snap.SourcesEnabled[victrola.SourceRoon])
	assert.Equal(t, victrola.SourceRoon, snap.ActiveSource)
}

func TestApplySourceDisabledKeepsActive(t *testing.T) {
	l, shadow, _ := newTestListener(&fakeDevice{})
	shadow.SetActiveSource(victrola.SourceSonos)
	shadow.SetSourceEnabled(victrola.SourceSonos, true)

	l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathUPnPEnabled, Value: victrola.BoolValue(false)},
	})

	assert.Equal(t, victrola.SourceSonos, shadow.Snapshot().ActiveSource)
}

func TestApplyQualityAndLatencyEvents(t *testing.T) {
	l, shadow, _ := newTestListener(&fakeDevice{})

	l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathAudioQuality, Value: victrola.NamedValue("forceLowBitrate", "connectionQuality")},
		{Path: victrola.PathAudioLatency, Value: victrola.NamedValue("adchlsLatency", "max")},
	})

	snap := shadow.Snapshot()
	assert.Equal(t, victrola.QualityLow, snap.AudioQuality)
	assert.Equal(t, victrola.LatencyMax, snap.AudioLatency)
}

func TestApplyUnknownQualityValueSkipped(t *testing.T) {
	l, shadow, _ := newTestListener(&fakeDevice{})
	shadow.SetAudioQuality(victrola.QualityHigh)

	changed := l.apply(context.Background(), []victrola.Event{
		{Path: victrola.PathAudioQuality, Value: victrola.NamedValue("forceLowBitrate", "mysteryQuality")},
	})

	assert.False(t, changed)
	assert.Equal(t, victrola.QualityHigh, shadow.Snapshot().AudioQuality)
}

func TestBackoffDelayScalesAndCaps(t *testing.T) {
	base := 5 * time.Second

	assert.Equal(t, 5*time.Second, BackoffDelay(base, 1, 3))
	assert.Equal(t, 10*time.Second, BackoffDelay(base, 2, 3))
	assert.Equal(t, 15*time.Second, BackoffDelay(base, 3, 3))
	// Capped at base x maxFailures.
	assert.Equal(t, 15*time.Second, BackoffDelay(base, 7, 3))
	// Zero failures still waits one base delay.
	assert.Equal(t, 5*time.Second, BackoffDelay(base, 0, 3))
}
