package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strefethen/victrola-bridge/internal/api"
	"github.com/strefethen/victrola-bridge/internal/audit"
	"github.com/strefethen/victrola-bridge/internal/auth"
	"github.com/strefethen/victrola-bridge/internal/bridge"
	"github.com/strefethen/victrola-bridge/internal/config"
	"github.com/strefethen/victrola-bridge/internal/db"
	"github.com/strefethen/victrola-bridge/internal/listener"
	"github.com/strefethen/victrola-bridge/internal/poller"
	"github.com/strefethen/victrola-bridge/internal/registry"
	"github.com/strefethen/victrola-bridge/internal/state"
	"github.com/strefethen/victrola-bridge/internal/victrola"
	"github.com/strefethen/victrola-bridge/internal/ws"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs all incoming HTTP requests
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.status, time.Since(start).Round(time.Millisecond))
	})
}

// Options controls server wiring.
type Options struct {
	// DisableBackground skips the poll reconciler and event listener, for
	// tests exercising the HTTP surface alone.
	DisableBackground bool
}

// NewHandler builds the HTTP handler and returns a shutdown function.
func NewHandler(cfg config.Config, options Options) (http.Handler, func(context.Context) error, error) {
	log.Printf("Using database: %s", cfg.SQLiteDBPath)
	dbPair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, err
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLoggerMiddleware)
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)
	router.Use(auth.Middleware(cfg))

	shadow := state.New()
	reg := registry.New(cfg.RoonCoreID)

	registerHealthRoutes(router, shadow)

	pairingStore := auth.NewPairingStore(time.Duration(cfg.PairingCodeTTLSec) * time.Second)
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	pairingStore.StartCleanup(shutdownCtx, time.Minute)
	auth.RegisterRoutes(router, pairingStore, cfg)

	// Registry persistence: seed file beats DB seeds, live records restore
	// last so the registry is useful before the first poll cycle.
	registryRepo := registry.NewRepository(dbPair)
	if cfg.SeedTablePath != "" {
		seeds, err := registry.LoadSeedFile(cfg.SeedTablePath)
		if err != nil {
			log.Printf("REGISTRY: seed file skipped: %v", err)
		} else {
			if err := registryRepo.SaveSeeds(seeds); err != nil {
				log.Printf("REGISTRY: seed persist failed: %v", err)
			}
		}
	}
	if seeds, err := registryRepo.LoadSeeds(); err != nil {
		log.Printf("REGISTRY: seed load failed: %v", err)
	} else {
		reg.LoadSeeds(seeds)
	}
	if records, err := registryRepo.LoadRecords(); err != nil {
		log.Printf("REGISTRY: record restore failed: %v", err)
	} else {
		reg.Restore(records)
	}
	reg.SetPersistFunc(func(backend victrola.Source, records []registry.SpeakerRecord) {
		if err := registryRepo.ReplaceRecords(backend, records); err != nil {
			log.Printf("REGISTRY: record persist failed: %v", err)
		}
	})

	device := victrola.NewClient(cfg.VictrolaHost, cfg.VictrolaPort,
		time.Duration(cfg.DeviceTimeoutMs)*time.Millisecond,
		time.Duration(cfg.ActivateTimeoutMs)*time.Millisecond)

	auditRepo := audit.NewRepository(dbPair)
	bridgeService := bridge.NewService(device, shadow, reg, auditRepo)
	bridge.RegisterRoutes(router, bridgeService)
	registerAuditRoutes(router, auditRepo)

	hub := ws.NewHub()
	hub.RegisterRoutes(router, shadow)
	shadow.OnChange(hub.Publish)

	pollReconciler := poller.New(device, shadow, reg,
		time.Duration(cfg.PollIntervalSec)*time.Second)
	eventListener := listener.New(device, shadow, reg,
		time.Duration(cfg.EventPollTimeoutMs)*time.Millisecond,
		time.Duration(cfg.EventReconnectDelaySec)*time.Second,
		cfg.EventMaxFailures)

	if !options.DisableBackground {
		if err := pollReconciler.Start(shutdownCtx); err != nil {
			shutdownCancel()
			dbPair.Close()
			return nil, nil, err
		}
		if err := eventListener.Start(shutdownCtx); err != nil {
			shutdownCancel()
			pollReconciler.Stop()
			dbPair.Close()
			return nil, nil, err
		}
	}

	shutdown := func(ctx context.Context) error {
		shutdownCancel()
		if !options.DisableBackground {
			pollReconciler.Stop()
			eventListener.Stop()
		}
		hub.Close()
		if ctx == nil {
			ctx = context.Background()
		}
		return dbPair.Close()
	}

	return router, shutdown, nil
}

func registerHealthRoutes(router chi.Router, shadow *state.Shadow) {
	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		response := map[string]any{
			"status":           "healthy",
			"service":          "victrola-bridge",
			"device_connected": shadow.Connected(),
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		}
		return api.WriteJSON(w, http.StatusOK, response)
	}))
	router.Method(http.MethodGet, "/v1/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
	router.Method(http.MethodGet, "/v1/health/ready", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}))
}

func registerAuditRoutes(router chi.Router, auditRepo *audit.Repository) {
	router.Method(http.MethodGet, "/v1/commands", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		entries, err := auditRepo.Recent(limit)
		if err != nil {
			return err
		}
		return api.WriteList(w, "/v1/commands", entries, false)
	}))
}
