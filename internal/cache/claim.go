package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Claim records which request is computing a batch result. Owner names the
// process; Token identifies one acquisition, so two requests served by the
// same process never share a claim.
type Claim struct {
	Owner     string    `json:"owner"`
	Token     string    `json:"token"`
	UniqueID  string    `json:"unique_id"`
	Heartbeat time.Time `json:"heartbeat"`
	Expires   time.Time `json:"expires"`
}

// Live reports whether the claim has not expired at now.
func (c Claim) Live(now time.Time) bool {
	return now.Before(c.Expires)
}

// ClaimStore keeps work claims next to the status files. Every read-modify-
// write of a claim happens under an exclusive file lock, so two processes
// cannot both acquire the same unique id.
type ClaimStore struct {
	dir   string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewClaimStore creates a claim store in dir for owner. Claims expire ttl
// after their last heartbeat.
func NewClaimStore(dir, owner string, ttl time.Duration) *ClaimStore {
	return &ClaimStore{dir: dir, owner: owner, ttl: ttl, now: time.Now}
}

// Owner returns the identity written into claims.
func (s *ClaimStore) Owner() string {
	return s.owner
}

func (s *ClaimStore) path(uniqueID string) string {
	return filepath.Join(s.dir, safeName(uniqueID)+".claim")
}

// Acquire claims uniqueID. If a live claim exists, whoever holds it, that
// claim is returned with acquired=false. Expired claims are taken over.
func (s *ClaimStore) Acquire(uniqueID string) (claim Claim, acquired bool, err error) {
	err = s.locked(uniqueID, func() error {
		current, ok, err := s.read(uniqueID)
		if err != nil {
			return err
		}
		now := s.now()
		if ok && current.Live(now) {
			claim = current
			return nil
		}
		if ok {
			slog.Info("claim_taken_over",
				slog.String("unique_id", uniqueID),
				slog.String("previous_owner", current.Owner),
				slog.Time("expired", current.Expires))
		}
		claim = Claim{
			Owner:     s.owner,
			Token:     uuid.NewString(),
			UniqueID:  uniqueID,
			Heartbeat: now,
			Expires:   now.Add(s.ttl),
		}
		acquired = true
		return s.write(claim)
	})
	return claim, acquired, err
}

// Get returns the current claim on uniqueID, live or not.
func (s *ClaimStore) Get(uniqueID string) (Claim, bool, error) {
	var (
		claim Claim
		ok    bool
	)
	err := s.locked(uniqueID, func() error {
		var err error
		claim, ok, err = s.read(uniqueID)
		return err
	})
	return claim, ok, err
}

// Heartbeat extends held, a claim returned by a successful Acquire.
func (s *ClaimStore) Heartbeat(held Claim) error {
	return s.locked(held.UniqueID, func() error {
		current, ok, err := s.read(held.UniqueID)
		if err != nil {
			return err
		}
		if !ok || current.Token != held.Token {
			return fmt.Errorf("claim on %s is no longer held by %s", held.UniqueID, held.Owner)
		}
		now := s.now()
		current.Heartbeat = now
		current.Expires = now.Add(s.ttl)
		return s.write(current)
	})
}

// Release removes held. A claim taken over since is left in place.
func (s *ClaimStore) Release(held Claim) error {
	return s.locked(held.UniqueID, func() error {
		current, ok, err := s.read(held.UniqueID)
		if err != nil || !ok {
			return err
		}
		if current.Token != held.Token {
			return nil
		}
		if err := os.Remove(s.path(held.UniqueID)); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

// KeepAlive heartbeats held every interval until ctx is done.
// The returned function stops the heartbeat and waits for it to exit.
func (s *ClaimStore) KeepAlive(ctx context.Context, held Claim, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Heartbeat(held); err != nil {
					slog.Warn("claim_heartbeat_failed", slog.String("unique_id", held.UniqueID), slog.String("error", err.Error()))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *ClaimStore) locked(uniqueID string, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create claim directory: %w", err)
	}
	lock := flock.New(s.path(uniqueID) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock claim: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (s *ClaimStore) read(uniqueID string) (Claim, bool, error) {
	data, err := os.ReadFile(s.path(uniqueID))
	if err != nil {
		if os.IsNotExist(err) {
			return Claim{}, false, nil
		}
		return Claim{}, false, err
	}
	var c Claim
	if err := json.Unmarshal(data, &c); err != nil {
		// A torn claim is treated as absent and overwritten.
		return Claim{}, false, nil
	}
	return c, true, nil
}

func (s *ClaimStore) write(c Claim) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return writeAtomic(s.path(c.UniqueID), data)
}
