package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/victrola-bridge/internal/api"
	"github.com/strefethen/victrola-bridge/internal/apperrors"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// RegisterRoutes wires bridge routes to the router.
func RegisterRoutes(router chi.Router, service *Service) {
	router.Method(http.MethodGet, "/v1/state", api.Handler(getState(service)))
	router.Method(http.MethodGet, "/v1/speakers", api.Handler(listSpeakers(service)))
	router.Method(http.MethodGet, "/v1/speakers/{source}", api.Handler(listSourceSpeakers(service)))

	router.Method(http.MethodPost, "/v1/source", api.Handler(setSource(service)))
	router.Method(http.MethodPost, "/v1/speakers/{source}/default", api.Handler(selectDefaultSpeaker(service)))
	router.Method(http.MethodPost, "/v1/speakers/{source}/quickplay", api.Handler(quickplaySpeaker(service)))

	router.Method(http.MethodPost, "/v1/settings/audio-quality", api.Handler(setAudioQuality(service)))
	router.Method(http.MethodPost, "/v1/settings/audio-latency", api.Handler(setAudioLatency(service)))
	router.Method(http.MethodPost, "/v1/settings/knob-brightness", api.Handler(setKnobBrightness(service)))
	router.Method(http.MethodPost, "/v1/settings/autoplay", api.Handler(setAutoplay(service)))

	router.Method(http.MethodPost, "/v1/player/volume", api.Handler(setVolume(service)))
	router.Method(http.MethodPost, "/v1/player/mute", api.Handler(setMute(service)))

	router.Method(http.MethodPost, "/v1/device/reboot", api.Handler(reboot(service)))
}

func getState(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		snap := service.GetState()
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":            "device_state",
			"connected":         snap.Connected,
			"active_source":     snap.ActiveSource,
			"sources_enabled":   snap.SourcesEnabled,
			"current_quickplay": snap.CurrentQuickplay,
			"default_speakers":  snap.DefaultSpeakers,
			"audio_quality":     snap.AudioQuality,
			"audio_latency":     snap.AudioLatency,
			"knob_brightness":   snap.KnobBrightness,
			"autoplay":          snap.Autoplay,
			"volume":            snap.Volume,
			"muted":             snap.Muted,
			"power_target":      snap.PowerTarget,
			"power_reason":      snap.PowerReason,
		})
	}
}

func listSpeakers(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		backends := make(map[string]any, len(victrola.Sources))
		for _, source := range victrola.Sources {
			backends[string(source)] = service.Speakers(source)
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":   "speaker_registry",
			"backends": backends,
		})
	}
}

func listSourceSpeakers(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		source, err := parseSourceParam(r)
		if err != nil {
			return err
		}
		return api.WriteList(w, "/v1/speakers/"+string(source), service.Speakers(source), false)
	}
}

func setSource(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return apperrors.NewValidationError("invalid request body", nil)
		}

		source, ok := victrola.ParseSource(input.Source)
		if !ok {
			return apperrors.NewAppError(apperrors.ErrorCodeSourceUnknown,
				"Unknown source: "+input.Source, 400, map[string]any{"sources": victrola.Sources})
		}

		if err := service.SetSource(r.Context(), api.GetRequestID(r), source); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object": "command",
			"ok":     true,
			"source": source,
		})
	}
}

type speakerInput struct {
	Speaker string `json:"speaker"`
}

func selectDefaultSpeaker(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		source, err := parseSourceParam(r)
		if err != nil {
			return err
		}

		var input speakerInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Speaker == "" {
			return apperrors.NewValidationError("speaker is required", nil)
		}

		if err := service.SelectDefaultSpeaker(r.Context(), api.GetRequestID(r), source, input.Speaker); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":  "command",
			"ok":      true,
			"source":  source,
			"speaker": input.Speaker,
		})
	}
}

func quickplaySpeaker(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		source, err := parseSourceParam(r)
		if err != nil {
			return err
		}

		var input speakerInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Speaker == "" {
			return apperrors.NewValidationError("speaker is required", nil)
		}

		if err := service.QuickplaySpeaker(r.Context(), api.GetRequestID(r), source, input.Speaker); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":  "command",
			"ok":      true,
			"source":  source,
			"speaker": input.Speaker,
		})
	}
}

func setAudioQuality(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Quality string `json:"quality"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Quality == "" {
			return apperrors.NewValidationError("quality is required", nil)
		}

		if err := service.SetAudioQuality(r.Context(), api.GetRequestID(r), input.Quality); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":  "command",
			"ok":      true,
			"quality": input.Quality,
		})
	}
}

func setAudioLatency(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Latency string `json:"latency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Latency == "" {
			return apperrors.NewValidationError("latency is required", nil)
		}

		if err := service.SetAudioLatency(r.Context(), api.GetRequestID(r), input.Latency); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":  "command",
			"ok":      true,
			"latency": input.Latency,
		})
	}
}

func setKnobBrightness(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Brightness *int `json:"brightness"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Brightness == nil {
			return apperrors.NewValidationError("brightness is required", nil)
		}

		if err := service.SetKnobBrightness(r.Context(), api.GetRequestID(r), *input.Brightness); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":     "command",
			"ok":         true,
			"brightness": service.GetState().KnobBrightness,
		})
	}
}

func setAutoplay(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Enabled == nil {
			return apperrors.NewValidationError("enabled is required", nil)
		}

		if err := service.SetAutoplay(r.Context(), api.GetRequestID(r), *input.Enabled); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":  "command",
			"ok":      true,
			"enabled": *input.Enabled,
		})
	}
}

func setVolume(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Volume *int `json:"volume"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Volume == nil {
			return apperrors.NewValidationError("volume is required", nil)
		}

		if err := service.SetVolume(r.Context(), api.GetRequestID(r), *input.Volume); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object": "command",
			"ok":     true,
			"volume": service.GetState().Volume,
		})
	}
}

func setMute(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var input struct {
			Muted *bool `json:"muted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Muted == nil {
			return apperrors.NewValidationError("muted is required", nil)
		}

		if err := service.SetMute(r.Context(), api.GetRequestID(r), *input.Muted); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object": "command",
			"ok":     true,
			"muted":  *input.Muted,
		})
	}
}

func reboot(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := service.Reboot(r.Context(), api.GetRequestID(r)); err != nil {
			return err
		}
		return api.WriteAction(w, http.StatusAccepted, map[string]any{
			"object": "command",
			"ok":     true,
		})
	}
}

func parseSourceParam(r *http.Request) (victrola.Source, error) {
	raw := chi.URLParam(r, "source")
	source, ok := victrola.ParseSource(raw)
	if !ok {
		return "", apperrors.NewAppError(apperrors.ErrorCodeSourceUnknown,
			"Unknown source: "+raw, 400, map[string]any{"sources": victrola.Sources})
	}
	return source, nil
}
