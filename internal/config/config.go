package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the base server configuration.
type Config struct {
	Host         string
	Port         string
	SQLiteDBPath string
	NodeEnv      string

	// Victrola device connection. The device does not announce itself on the
	// network; host and port come from the user.
	VictrolaHost string
	VictrolaPort int

	// DeviceTimeoutMs bounds single getData/setData/getRows calls.
	DeviceTimeoutMs int
	// ActivateTimeoutMs bounds activate-role setData calls, which the firmware
	// answers more slowly than value writes.
	ActivateTimeoutMs int

	// PollIntervalSec is the slow reconcile cadence against the rows endpoints.
	PollIntervalSec int

	// EventPollTimeoutMs is the bounded wait passed to pollQueue. The HTTP
	// request timeout adds a small buffer on top.
	EventPollTimeoutMs     int
	EventReconnectDelaySec int
	EventMaxFailures       int

	// RoonCoreID prefixes fuzzy-matched Roon output IDs ("<core>:<output>").
	RoonCoreID string

	// SeedTablePath points at the YAML seed file for backends without a live
	// discovery endpoint. Optional; persisted seeds still load from SQLite.
	SeedTablePath string

	AllowTestMode            bool
	JWTSecret                string
	JWTAccessTokenExpirySec  int
	JWTRefreshTokenExpirySec int

	// PairingCodeTTLSec bounds how long a generated pairing code stays
	// claimable.
	PairingCodeTTLSec int
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	host := envString("HOST", "0.0.0.0")
	port := envString("PORT", "9010")
	sqlitePath := envString("SQLITE_DB_PATH", "./data/victrola-bridge.db")
	nodeEnv := envString("NODE_ENV", "development")

	victrolaHost := envString("VICTROLA_HOST", "")
	victrolaPort := envInt("VICTROLA_PORT", 80)
	deviceTimeout := envInt("DEVICE_TIMEOUT_MS", 5000)
	activateTimeout := envInt("ACTIVATE_TIMEOUT_MS", 10000)
	pollInterval := envInt("POLL_INTERVAL_SECONDS", 30)
	eventPollTimeout := envInt("EVENT_POLL_TIMEOUT_MS", 1500)
	eventReconnectDelay := envInt("EVENT_RECONNECT_DELAY_SECONDS", 5)
	eventMaxFailures := envInt("EVENT_MAX_FAILURES", 3)
	roonCoreID := envString("ROON_CORE_ID", "44fe722d-c19d-4786-ab03-e23feb2e6148")
	seedTablePath := envString("SEED_TABLE_PATH", "")

	allowTestMode := envBool("ALLOW_TEST_MODE", false)
	jwtSecret := envString("JWT_SECRET", "")
	jwtAccessExpiry := envInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)
	jwtRefreshExpiry := envInt("JWT_REFRESH_TOKEN_EXPIRY", 2592000)
	pairingCodeTTL := envInt("PAIRING_CODE_TTL_SECONDS", 300)

	if victrolaHost == "" {
		return Config{}, fmt.Errorf("VICTROLA_HOST is required")
	}
	if len(strings.TrimSpace(jwtSecret)) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return Config{
		Host:                     host,
		Port:                     port,
		SQLiteDBPath:             sqlitePath,
		NodeEnv:                  nodeEnv,
		VictrolaHost:             victrolaHost,
		VictrolaPort:             victrolaPort,
		DeviceTimeoutMs:          deviceTimeout,
		ActivateTimeoutMs:        activateTimeout,
		PollIntervalSec:          pollInterval,
		EventPollTimeoutMs:       eventPollTimeout,
		EventReconnectDelaySec:   eventReconnectDelay,
		EventMaxFailures:         eventMaxFailures,
		RoonCoreID:               roonCoreID,
		SeedTablePath:            seedTablePath,
		AllowTestMode:            allowTestMode,
		JWTSecret:                jwtSecret,
		JWTAccessTokenExpirySec:  jwtAccessExpiry,
		JWTRefreshTokenExpirySec: jwtRefreshExpiry,
		PairingCodeTTLSec:        pairingCodeTTL,
	}, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}
