package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/victrola-bridge/internal/victrola"
)

func TestBrightnessAndVolumeNullUntilObserved(t *testing.T) {
	snap := New().Snapshot()
	assert.Nil(t, snap.KnobBrightness)
	assert.Nil(t, snap.Volume)
}

func TestSetKnobBrightnessClamps(t *testing.T) {
	shadow := New()

	shadow.SetKnobBrightness(150)
	require.NotNil(t, shadow.Snapshot().KnobBrightness)
	assert.Equal(t, 100, *shadow.Snapshot().KnobBrightness)

	shadow.SetKnobBrightness(-5)
	assert.Equal(t, 0, *shadow.Snapshot().KnobBrightness)

	shadow.SetKnobBrightness(50)
	assert.Equal(t, 50, *shadow.Snapshot().KnobBrightness)
}

func TestSetVolumeClamps(t *testing.T) {
	shadow := New()

	shadow.SetVolume(120)
	require.NotNil(t, shadow.Snapshot().Volume)
	assert.Equal(t, 100, *shadow.Snapshot().Volume)

	shadow.SetVolume(-1)
	assert.Equal(t, 0, *shadow.Snapshot().Volume)
}

func TestUnknownAudioLabelsIgnored(t *testing.T) {
	shadow := New()
	shadow.SetAudioQuality(victrola.QualityHigh)
	shadow.SetAudioLatency(victrola.LatencyMedium)

	shadow.SetAudioQuality("Ultra")
	shadow.SetAudioLatency("Instant")

	snap := shadow.Snapshot()
	assert.Equal(t, victrola.QualityHigh, snap.AudioQuality)
	assert.Equal(t, victrola.LatencyMedium, snap.AudioLatency)
}

func TestSnapshotIsACopy(t *testing.T) {
	shadow := New()
	shadow.SetSourceEnabled(victrola.SourceSonos, true)
	shadow.SetDefaultSpeaker(victrola.SourceSonos, "Living Room")

	snap := shadow.Snapshot()
	snap.SourcesEnabled[victrola.SourceSonos] = false
	snap.DefaultSpeakers[victrola.SourceSonos] = "Kitchen"

	fresh := shadow.Snapshot()
	assert.True(t, fresh.SourcesEnabled[victrola.SourceSonos])
	assert.Equal(t, "Living Room", fresh.DefaultSpeakers[victrola.SourceSonos])
}

func TestNotifyDeliversSnapshotToListeners(t *testing.T) {
	shadow := New()

	var got []Snapshot
	shadow.OnChange(func(snap Snapshot) {
		got = append(got, snap)
	})

	shadow.SetVolume(30)
	shadow.SetActiveSource(victrola.SourceRoon)
	shadow.Notify()

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Volume)
	assert.Equal(t, 30, *got[0].Volume)
	assert.Equal(t, victrola.SourceRoon, got[0].ActiveSource)
}
