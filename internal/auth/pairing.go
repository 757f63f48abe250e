package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Pairing codes are short-lived and entered by hand off the bridge's log,
// so six digits is the whole ceremony.
const pairingCodeDigits = 6

var (
	ErrPairCodeInvalid = errors.New("pairing code invalid")
	ErrPairCodeExpired = errors.New("pairing code expired")
)

// PairingStore holds the one outstanding pairing code. The bridge fronts a
// single turntable, so pairing is serialized: issuing a new code revokes the
// previous one instead of accumulating entries.
type PairingStore struct {
	mu        sync.Mutex
	code      string
	createdAt time.Time
	requestID string
	ttl       time.Duration
}

// NewPairingStore creates a store whose codes expire after ttl.
func NewPairingStore(ttl time.Duration) *PairingStore {
	return &PairingStore{ttl: ttl}
}

// TTL returns the configured code lifetime.
func (store *PairingStore) TTL() time.Duration { return store.ttl }

// StartCleanup drops an expired code periodically until ctx is canceled, so
// a stale code does not sit in memory waiting for the next Claim.
func (store *PairingStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.mu.Lock()
				if store.code != "" && store.expiredLocked() {
					store.clearLocked()
				}
				store.mu.Unlock()
			case <-ctx.Done():
				store.Clear()
				return
			}
		}
	}()
}

// Create issues a fresh pairing code, revoking any outstanding one.
func (store *PairingStore) Create(requestID string) (string, error) {
	code, err := randomPairingCode()
	if err != nil {
		return "", err
	}

	store.mu.Lock()
	store.code = code
	store.createdAt = time.Now()
	store.requestID = requestID
	store.mu.Unlock()
	return code, nil
}

// Claim consumes the outstanding code. A wrong or already-claimed code
// returns ErrPairCodeInvalid; the right code past its TTL returns
// ErrPairCodeExpired. Either way the code is spent.
func (store *PairingStore) Claim(code string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.code == "" || code != store.code {
		return ErrPairCodeInvalid
	}
	expired := store.expiredLocked()
	store.clearLocked()
	if expired {
		return ErrPairCodeExpired
	}
	return nil
}

// Clear revokes the outstanding code.
func (store *PairingStore) Clear() {
	store.mu.Lock()
	store.clearLocked()
	store.mu.Unlock()
}

func (store *PairingStore) expiredLocked() bool {
	return time.Since(store.createdAt) > store.ttl
}

func (store *PairingStore) clearLocked() {
	store.code = ""
	store.requestID = ""
}

func randomPairingCode() (string, error) {
	// Uniform over [10^(d-1), 10^d): always exactly d digits.
	floor := int64(1)
	for i := 1; i < pairingCodeDigits; i++ {
		floor *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(floor*9))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", floor+n.Int64()), nil
}
