package bridge

import (
	"context"
	"errors"
	"log"

	"github.com/strefethen/victrola-bridge/internal/apperrors"
	"github.com/strefethen/victrola-bridge/internal/registry"
	"github.com/strefethen/victrola-bridge/internal/state"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// deviceAPI is the slice of the device client the dispatcher needs.
type deviceAPI interface {
	Quickplay(ctx context.Context, typeName, speakerID string) error
	SetDefaultOutput(ctx context.Context, typeName, speakerID string) error
	SetAudioQuality(ctx context.Context, apiValue string) error
	SetAudioLatency(ctx context.Context, apiValue string) error
	SetKnobBrightness(ctx context.Context, brightness int) error
	SetSourceEnabled(ctx context.Context, source victrola.Source, enabled bool) error
	SetAutoplay(ctx context.Context, enabled bool) error
	SetVolume(ctx context.Context, volume int) error
	SetMute(ctx context.Context, muted bool) error
	Reboot(ctx context.Context) error
}

// auditor records dispatched commands. Satisfied by audit.Repository.
type auditor interface {
	Record(requestID, command string, params any, cmdErr error)
}

// Service is the command dispatcher: it validates and resolves a command
// against the registry, sends it to the device, and optimistically folds the
// result into the shadow so the API reflects the change before the next
// poll cycle confirms it.
type Service struct {
	device   deviceAPI
	shadow   *state.Shadow
	registry *registry.Registry
	audit    auditor
}

// NewService creates the dispatcher.
func NewService(device deviceAPI, shadow *state.Shadow, reg *registry.Registry, auditRepo auditor) *Service {
	return &Service{device: device, shadow: shadow, registry: reg, audit: auditRepo}
}

func (s *Service) record(requestID, command string, params any, err error) {
	if s.audit != nil {
		s.audit.Record(requestID, command, params, err)
	}
	if err != nil {
		log.Printf("BRIDGE: %s failed: %v", command, err)
	}
}

// GetState returns the current shadow snapshot.
func (s *Service) GetState() state.Snapshot {
	return s.shadow.Snapshot()
}

// Speakers lists the registry records for one backend.
func (s *Service) Speakers(backend victrola.Source) []registry.SpeakerRecord {
	return s.registry.Records(backend)
}

// SetSource switches the active source: the previous source is disabled
// first, then the new one enabled, mirroring how the vendor app sequences
// the flags. Enabling the already-active source is a cheap no-op pair.
func (s *Service) SetSource(ctx context.Context, requestID string, source victrola.Source) error {
	params := map[string]any{"source": source}

	previous := s.shadow.ActiveSource()
	if previous != "" && previous != source {
		if err := s.device.SetSourceEnabled(ctx, previous, false); err != nil {
			s.record(requestID, "set_source", params, err)
			return deviceError(err)
		}
		s.shadow.SetSourceEnabled(previous, false)
	}

	err := s.device.SetSourceEnabled(ctx, source, true)
	s.record(requestID, "set_source", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetSourceEnabled(source, true)
	s.shadow.SetActiveSource(source)
	s.shadow.Notify()
	return nil
}

// SelectDefaultSpeaker binds a speaker as a source's default output without
// starting playback. The name resolves through the registry before any
// network call; unresolvable names are rejected locally.
func (s *Service) SelectDefaultSpeaker(ctx context.Context, requestID string, source victrola.Source, name string) error {
	params := map[string]any{"source": source, "speaker": name}

	rec, ok := s.registry.Resolve(source, name)
	if !ok {
		err := apperrors.NewSpeakerNotFoundError(string(source), name)
		s.record(requestID, "select_default_speaker", params, err)
		return err
	}

	err := s.device.SetDefaultOutput(ctx, victrola.DefaultOutputType(source), rec.ResolvedID)
	s.record(requestID, "select_default_speaker", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetDefaultSpeaker(source, rec.DisplayName)
	s.shadow.Notify()
	return nil
}

// QuickplaySpeaker selects a speaker and starts audio on it immediately.
func (s *Service) QuickplaySpeaker(ctx context.Context, requestID string, source victrola.Source, name string) error {
	params := map[string]any{"source": source, "speaker": name}

	rec, ok := s.registry.Resolve(source, name)
	if !ok {
		err := apperrors.NewSpeakerNotFoundError(string(source), name)
		s.record(requestID, "quickplay_speaker", params, err)
		return err
	}

	err := s.device.Quickplay(ctx, victrola.QuickplayType(source), rec.ResolvedID)
	s.record(requestID, "quickplay_speaker", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetCurrentQuickplay(rec.DisplayName)
	s.shadow.SetActiveSource(source)
	s.shadow.Notify()
	return nil
}

// SetAudioQuality writes the quality setting from its display label.
func (s *Service) SetAudioQuality(ctx context.Context, requestID, label string) error {
	params := map[string]any{"quality": label}

	apiValue, ok := victrola.AudioQualityLabelToAPI[label]
	if !ok {
		err := apperrors.NewAppError(apperrors.ErrorCodeOptionUnknown,
			"Unknown audio quality: "+label, 400, map[string]any{"options": victrola.AudioQualityLabels})
		s.record(requestID, "set_audio_quality", params, err)
		return err
	}

	err := s.device.SetAudioQuality(ctx, apiValue)
	s.record(requestID, "set_audio_quality", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetAudioQuality(label)
	s.shadow.Notify()
	return nil
}

// SetAudioLatency writes the wireless latency setting from its display label.
func (s *Service) SetAudioLatency(ctx context.Context, requestID, label string) error {
	params := map[string]any{"latency": label}

	apiValue, ok := victrola.AudioLatencyLabelToAPI[label]
	if !ok {
		err := apperrors.NewAppError(apperrors.ErrorCodeOptionUnknown,
			"Unknown audio latency: "+label, 400, map[string]any{"options": victrola.AudioLatencyLabels})
		s.record(requestID, "set_audio_latency", params, err)
		return err
	}

	err := s.device.SetAudioLatency(ctx, apiValue)
	s.record(requestID, "set_audio_latency", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetAudioLatency(label)
	s.shadow.Notify()
	return nil
}

// SetKnobBrightness writes the knob LED brightness. Out-of-range values
// clamp to [0,100] both on the wire and in the shadow.
func (s *Service) SetKnobBrightness(ctx context.Context, requestID string, brightness int) error {
	params := map[string]any{"brightness": brightness}

	err := s.device.SetKnobBrightness(ctx, brightness)
	s.record(requestID, "set_knob_brightness", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetKnobBrightness(brightness)
	s.shadow.Notify()
	return nil
}

// SetVolume writes the player volume, clamped to [0,100].
func (s *Service) SetVolume(ctx context.Context, requestID string, volume int) error {
	params := map[string]any{"volume": volume}

	err := s.device.SetVolume(ctx, volume)
	s.record(requestID, "set_volume", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetVolume(volume)
	s.shadow.Notify()
	return nil
}

// SetMute writes the media player mute flag.
func (s *Service) SetMute(ctx context.Context, requestID string, muted bool) error {
	params := map[string]any{"muted": muted}

	err := s.device.SetMute(ctx, muted)
	s.record(requestID, "set_mute", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetMuted(muted)
	s.shadow.Notify()
	return nil
}

// SetAutoplay writes the autoplay flag.
func (s *Service) SetAutoplay(ctx context.Context, requestID string, enabled bool) error {
	params := map[string]any{"enabled": enabled}

	err := s.device.SetAutoplay(ctx, enabled)
	s.record(requestID, "set_autoplay", params, err)
	if err != nil {
		return deviceError(err)
	}

	s.shadow.SetAutoplay(enabled)
	s.shadow.Notify()
	return nil
}

// Reboot restarts the device. No shadow update; the poll cycle will mark the
// device disconnected while it goes down.
func (s *Service) Reboot(ctx context.Context, requestID string) error {
	err := s.device.Reboot(ctx)
	s.record(requestID, "reboot", map[string]any{}, err)
	if err != nil {
		return deviceError(err)
	}
	return nil
}

// deviceError maps transport failures onto HTTP-facing app errors.
func deviceError(err error) error {
	var timeout *victrola.DeviceTimeoutError
	if errors.As(err, &timeout) {
		return apperrors.NewDeviceTimeoutError(timeout.Error())
	}
	var unreachable *victrola.DeviceUnreachableError
	if errors.As(err, &unreachable) {
		return apperrors.NewDeviceUnreachableError(unreachable.Error())
	}
	var rejected *victrola.DeviceRejectedError
	if errors.As(err, &rejected) {
		return apperrors.NewAppError(apperrors.ErrorCodeDeviceRejected, rejected.Error(), 502, nil)
	}
	return apperrors.NewInternalError("Device command failed")
}
