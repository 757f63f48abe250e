package poller

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/strefethen/victrola-bridge/internal/registry"
	"github.com/strefethen/victrola-bridge/internal/state"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// deviceAPI is the slice of the device client the reconciler needs.
type deviceAPI interface {
	TestConnection(ctx context.Context) bool
	GetQuickplaySpeakers(ctx context.Context) ([]victrola.QuickplaySpeaker, error)
	GetSettingsRows(ctx context.Context) ([]victrola.TypedValue, error)
	GetUIState(ctx context.Context) (victrola.UIState, error)
	GetPlayerState(ctx context.Context) (victrola.PlayerState, error)
}

// Reconciler periodically reads the device's row containers and folds the
// result into the shadow and registry. It is the slow truth source; the event
// listener covers the gaps between cycles.
type Reconciler struct {
	device   deviceAPI
	shadow   *state.Shadow
	registry *registry.Registry

	interval time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID
}

// New creates a reconciler that runs every interval.
func New(device deviceAPI, shadow *state.Shadow, reg *registry.Registry, interval time.Duration) *Reconciler {
	return &Reconciler{
		device:   device,
		shadow:   shadow,
		registry: reg,
		interval: interval,
	}
}

// Start schedules the reconcile loop. SkipIfStillRunning guarantees cycles
// never overlap even when a device read runs long. The first cycle fires
// immediately rather than waiting one interval.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.cron != nil {
		return fmt.Errorf("reconciler already started")
	}

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	r.entryID = id
	r.cron.Start()

	go r.RunCycle(ctx)

	log.Printf("POLLER: started, interval %s", r.interval)
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	log.Printf("POLLER: stopped")
}

// RunCycle executes one reconcile pass. Transport failures abort the pass
// and mark the device disconnected; per-field decode problems only skip the
// affected field.
func (r *Reconciler) RunCycle(ctx context.Context) {
	if !r.device.TestConnection(ctx) {
		if r.shadow.Connected() {
			log.Printf("POLLER: device unreachable")
		}
		r.shadow.SetConnected(false)
		r.shadow.Notify()
		return
	}
	r.shadow.SetConnected(true)

	if err := r.reconcileQuickplay(ctx); err != nil {
		r.failCycle("quickplay", err)
		return
	}
	if err := r.reconcileSettings(ctx); err != nil {
		r.failCycle("settings", err)
		return
	}
	if err := r.reconcileUIState(ctx); err != nil {
		r.failCycle("ui", err)
		return
	}
	if err := r.reconcilePlayerState(ctx); err != nil {
		r.failCycle("player", err)
		return
	}

	r.shadow.Notify()
}

func (r *Reconciler) failCycle(step string, err error) {
	log.Printf("POLLER: %s reconcile failed: %v", step, err)
	if victrola.IsTransport(err) {
		r.shadow.SetConnected(false)
	}
	r.shadow.Notify()
}

func (r *Reconciler) reconcileQuickplay(ctx context.Context) error {
	speakers, err := r.device.GetQuickplaySpeakers(ctx)
	if err != nil {
		return err
	}

	preferred := r.registry.UpdateFromQuickplay(speakers)
	if preferred != "" {
		r.shadow.SetCurrentQuickplay(preferred)
	}
	return nil
}

func (r *Reconciler) reconcileSettings(ctx context.Context) error {
	values, err := r.device.GetSettingsRows(ctx)
	if err != nil {
		return err
	}

	decoded := decodeSettingsRows(values)

	for source, enabled := range decoded.enabled {
		if enabled != nil {
			r.shadow.SetSourceEnabled(source, *enabled)
			if *enabled {
				r.shadow.SetActiveSource(source)
			}
		}
	}

	for source, id := range decoded.defaultIDs {
		name, ok := r.registry.ReverseResolve(source, id)
		if !ok {
			// Unknown ID, surface it raw rather than dropping it.
			name = id
		}
		r.shadow.SetDefaultSpeaker(source, name)
	}

	if decoded.qualityLabel != "" {
		r.shadow.SetAudioQuality(decoded.qualityLabel)
	}
	if decoded.latencyLabel != "" {
		r.shadow.SetAudioLatency(decoded.latencyLabel)
	}
	if decoded.brightness != nil {
		r.shadow.SetKnobBrightness(*decoded.brightness)
	}
	if decoded.autoplay != nil {
		r.shadow.SetAutoplay(*decoded.autoplay)
	}
	return nil
}

// reconcileUIState reads the UI tree last among the name sources: the
// speakerSelection title is the device's authoritative display name for the
// active default speaker and wins over reverse-resolved names.
func (r *Reconciler) reconcileUIState(ctx context.Context) error {
	ui, err := r.device.GetUIState(ctx)
	if err != nil {
		return err
	}

	if ui.DefaultSpeakerName != "" {
		if source := r.shadow.ActiveSource(); source != "" {
			r.shadow.SetDefaultSpeaker(source, ui.DefaultSpeakerName)
		}
	}
	if ui.Autoplay != nil {
		r.shadow.SetAutoplay(*ui.Autoplay)
	}
	return nil
}

func (r *Reconciler) reconcilePlayerState(ctx context.Context) error {
	player, err := r.device.GetPlayerState(ctx)
	if err != nil {
		return err
	}

	if player.Volume != nil {
		r.shadow.SetVolume(*player.Volume)
	}
	if player.PowerTarget != "" {
		r.shadow.SetPowerState(player.PowerTarget, player.PowerReason)
	}
	return nil
}
