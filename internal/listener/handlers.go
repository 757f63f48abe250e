package listener

import (
	"context"
	"log"

	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// apply folds a batch of events into the shadow and registry. Returns whether
// any event changed state; unknown paths and malformed payloads are skipped.
func (l *Listener) apply(ctx context.Context, events []victrola.Event) bool {
	changed := false
	for _, event := range events {
		if l.applyOne(ctx, event) {
			changed = true
		}
	}
	return changed
}

func (l *Listener) applyOne(ctx context.Context, event victrola.Event) bool {
	switch event.Path {
	case victrola.PathSpeakerQuickplay:
		return l.handleQuickplayRows(event)
	case victrola.PathSpeakerSelection:
		return l.handleSpeakerSelection(ctx)
	case victrola.PathVolume:
		return l.handleVolume(event)
	case victrola.PathPowerTarget:
		return l.handlePowerTarget(event)
	case victrola.PathAudioQuality:
		return l.handleAudioQuality(event)
	case victrola.PathAudioLatency:
		return l.handleAudioLatency(event)
	case victrola.PathKnobBrightness:
		return l.handleBrightness(event)
	case victrola.PathAutoplay:
		return l.handleAutoplay(event)
	case victrola.PathMute:
		return l.handleMute(event)
	}

	if source, ok := victrola.SourceForEnabledPath(event.Path); ok {
		return l.handleSourceEnabled(source, event)
	}

	log.Printf("LISTENER: ignoring event for unknown path %s", event.Path)
	return false
}

func (l *Listener) handleQuickplayRows(event victrola.Event) bool {
	rows := event.SpeakerRows()
	if rows == nil {
		return false
	}

	speakers := victrola.NormalizeSpeakerRows(rows)
	preferred := l.registry.UpdateFromQuickplay(speakers)
	if preferred != "" {
		l.shadow.SetCurrentQuickplay(preferred)
	}
	return true
}

// handleSpeakerSelection refetches the UI tree: the event's rows payload does
// not carry the selection title, only a change marker.
func (l *Listener) handleSpeakerSelection(ctx context.Context) bool {
	ui, err := l.device.GetUIState(ctx)
	if err != nil {
		log.Printf("LISTENER: speakerSelection refetch failed: %v", err)
		return false
	}
	if ui.DefaultSpeakerName == "" {
		return false
	}

	source := l.shadow.ActiveSource()
	if source == "" {
		return false
	}
	l.shadow.SetDefaultSpeaker(source, ui.DefaultSpeakerName)
	return true
}

func (l *Listener) handleVolume(event victrola.Event) bool {
	if event.Value.Type() != "i32_" {
		return false
	}
	volume, ok := event.Value.Int()
	if !ok {
		return false
	}
	l.shadow.SetVolume(volume)
	return true
}

func (l *Listener) handlePowerTarget(event victrola.Event) bool {
	target, reason, ok := event.Value.PowerTarget()
	if !ok {
		return false
	}
	l.shadow.SetPowerState(target, reason)
	return true
}

func (l *Listener) handleAudioQuality(event victrola.Event) bool {
	api, ok := event.Value.Named("forceLowBitrate")
	if !ok {
		return false
	}
	label, known := victrola.AudioQualityAPIToLabel[api]
	if !known {
		return false
	}
	l.shadow.SetAudioQuality(label)
	return true
}

func (l *Listener) handleAudioLatency(event victrola.Event) bool {
	api, ok := event.Value.Named("adchlsLatency")
	if !ok {
		return false
	}
	label, known := victrola.AudioLatencyAPIToLabel[api]
	if !known {
		return false
	}
	l.shadow.SetAudioLatency(label)
	return true
}

func (l *Listener) handleBrightness(event victrola.Event) bool {
	brightness, ok := event.Value.Int()
	if !ok {
		return false
	}
	l.shadow.SetKnobBrightness(brightness)
	return true
}

func (l *Listener) handleAutoplay(event victrola.Event) bool {
	enabled, ok := event.Value.Bool()
	if !ok {
		return false
	}
	l.shadow.SetAutoplay(enabled)
	return true
}

func (l *Listener) handleMute(event victrola.Event) bool {
	muted, ok := event.Value.Bool()
	if !ok {
		return false
	}
	l.shadow.SetMuted(muted)
	return true
}

// handleSourceEnabled flips the enable flag; an enabled=true event also makes
// that source the active one, since the firmware enables the source it is
// switching playback to.
func (l *Listener) handleSourceEnabled(source victrola.Source, event victrola.Event) bool {
	enabled, ok := event.Value.Bool()
	if !ok {
		return false
	}
	l.shadow.SetSourceEnabled(source, enabled)
	if enabled {
		l.shadow.SetActiveSource(source)
	}
	return true
}
