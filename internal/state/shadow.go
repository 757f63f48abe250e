package state

import (
	"sync"

	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// Snapshot is an immutable copy of the bridge's view of the device.
type Snapshot struct {
	Connected bool `json:"connected"`

	ActiveSource     victrola.Source          `json:"active_source,omitempty"`
	SourcesEnabled   map[victrola.Source]bool `json:"sources_enabled"`
	CurrentQuickplay string                   `json:"current_quickplay,omitempty"`

	DefaultSpeakers map[victrola.Source]string `json:"default_speakers"`

	AudioQuality string `json:"audio_quality,omitempty"`
	AudioLatency string `json:"audio_latency,omitempty"`
	// Brightness and volume are nil until first observed, so consumers see
	// null rather than a fabricated in-range value before the first poll.
	KnobBrightness *int `json:"knob_brightness"`
	Autoplay       bool `json:"autoplay"`

	Volume      *int   `json:"volume"`
	Muted       bool   `json:"muted"`
	PowerTarget string `json:"power_target,omitempty"`
	PowerReason string `json:"power_reason,omitempty"`
}

// Listener receives a snapshot after each batch of changes.
type Listener func(Snapshot)

// Shadow is the in-memory mirror of device state. Writers are the poll
// reconciler, the event listener, and optimistic command writes; readers are
// the HTTP API and the websocket hub. All accessors copy.
type Shadow struct {
	mu        sync.RWMutex
	snap      Snapshot
	listeners []Listener
}

// New creates an empty shadow. Sources start disabled and speakers unknown.
func New() *Shadow {
	return &Shadow{
		snap: Snapshot{
			SourcesEnabled:  make(map[victrola.Source]bool, len(victrola.Sources)),
			DefaultSpeakers: make(map[victrola.Source]string, len(victrola.Sources)),
		},
	}
}

// OnChange registers a listener invoked after Notify. Registration is not
// safe to interleave with Notify; wire listeners during startup.
func (s *Shadow) OnChange(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Notify pushes the current snapshot to all listeners. Callers invoke it once
// per batch of changes rather than per field.
func (s *Shadow) Notify() {
	snap := s.Snapshot()
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Shadow) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snap
	snap.SourcesEnabled = make(map[victrola.Source]bool, len(s.snap.SourcesEnabled))
	for k, v := range s.snap.SourcesEnabled {
		snap.SourcesEnabled[k] = v
	}
	snap.DefaultSpeakers = make(map[victrola.Source]string, len(s.snap.DefaultSpeakers))
	for k, v := range s.snap.DefaultSpeakers {
		snap.DefaultSpeakers[k] = v
	}
	if s.snap.KnobBrightness != nil {
		v := *s.snap.KnobBrightness
		snap.KnobBrightness = &v
	}
	if s.snap.Volume != nil {
		v := *s.snap.Volume
		snap.Volume = &v
	}
	return snap
}

// SetConnected records device reachability.
func (s *Shadow) SetConnected(connected bool) {
	s.mu.Lock()
	s.snap.Connected = connected
	s.mu.Unlock()
}

// Connected reports the last known reachability.
func (s *Shadow) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Connected
}

// SetActiveSource records which backend currently owns playback.
func (s *Shadow) SetActiveSource(source victrola.Source) {
	s.mu.Lock()
	s.snap.ActiveSource = source
	s.mu.Unlock()
}

// ActiveSource returns the backend that currently owns playback.
func (s *Shadow) ActiveSource() victrola.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.ActiveSource
}

// SetSourceEnabled records a source's enable flag.
func (s *Shadow) SetSourceEnabled(source victrola.Source, enabled bool) {
	s.mu.Lock()
	s.snap.SourcesEnabled[source] = enabled
	s.mu.Unlock()
}

// SetCurrentQuickplay records the display name of the speaker last started
// via quickplay.
func (s *Shadow) SetCurrentQuickplay(name string) {
	s.mu.Lock()
	s.snap.CurrentQuickplay = name
	s.mu.Unlock()
}

// SetDefaultSpeaker records the default speaker display name for a source.
func (s *Shadow) SetDefaultSpeaker(source victrola.Source, name string) {
	s.mu.Lock()
	s.snap.DefaultSpeakers[source] = name
	s.mu.Unlock()
}

// DefaultSpeaker returns the default speaker display name for a source.
func (s *Shadow) DefaultSpeaker(source victrola.Source) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.DefaultSpeakers[source]
}

// SetAudioQuality records the quality label. Unknown labels are ignored so a
// firmware value we do not recognize never corrupts the shadow.
func (s *Shadow) SetAudioQuality(label string) {
	if _, ok := victrola.AudioQualityLabelToAPI[label]; !ok {
		return
	}
	s.mu.Lock()
	s.snap.AudioQuality = label
	s.mu.Unlock()
}

// SetAudioLatency records the latency label. Unknown labels are ignored.
func (s *Shadow) SetAudioLatency(label string) {
	if _, ok := victrola.AudioLatencyLabelToAPI[label]; !ok {
		return
	}
	s.mu.Lock()
	s.snap.AudioLatency = label
	s.mu.Unlock()
}

// SetKnobBrightness records brightness, clamped to [0,100].
func (s *Shadow) SetKnobBrightness(brightness int) {
	v := clamp(brightness, 0, 100)
	s.mu.Lock()
	s.snap.KnobBrightness = &v
	s.mu.Unlock()
}

// SetAutoplay records the autoplay flag.
func (s *Shadow) SetAutoplay(enabled bool) {
	s.mu.Lock()
	s.snap.Autoplay = enabled
	s.mu.Unlock()
}

// SetVolume records the player volume, clamped to [0,100].
func (s *Shadow) SetVolume(volume int) {
	v := clamp(volume, 0, 100)
	s.mu.Lock()
	s.snap.Volume = &v
	s.mu.Unlock()
}

// SetMuted records the mute flag.
func (s *Shadow) SetMuted(muted bool) {
	s.mu.Lock()
	s.snap.Muted = muted
	s.mu.Unlock()
}

// SetPowerState records the power target and the firmware's reason for it.
func (s *Shadow) SetPowerState(target, reason string) {
	s.mu.Lock()
	s.snap.PowerTarget = target
	s.snap.PowerReason = reason
	s.mu.Unlock()
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
