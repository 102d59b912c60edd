package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimStore_AcquireIsExclusive(t *testing.T) {
	dir := t.TempDir()
	a := NewClaimStore(dir, "worker-a", time.Minute)
	b := NewClaimStore(dir, "worker-b", time.Minute)

	// Given: worker a claims the run
	claim, ok, err := a.Acquire("run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "worker-a", claim.Owner)

	// When: worker b tries to claim it
	claim, ok, err = b.Acquire("run-1")

	// Then: b sees a's live claim
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "worker-a", claim.Owner)

	// And: a second acquisition by the same owner is refused too
	_, ok, err = a.Acquire("run-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimStore_SameOwnerRequestsDoNotShareClaims(t *testing.T) {
	// Given: two requests served by one process
	s := NewClaimStore(t.TempDir(), "serve-1", time.Minute)
	first, ok, err := s.Acquire("run")
	require.NoError(t, err)
	require.True(t, ok)

	// When: the second request tries the same run
	seen, ok, err := s.Acquire("run")

	// Then: it sees the first request's claim
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, first.Token, seen.Token)

	// And: releasing a claim it never held leaves the first one in place
	require.NoError(t, s.Release(Claim{Owner: "serve-1", Token: "other", UniqueID: "run"}))
	got, ok, err := s.Get("run")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Token, got.Token)

	require.NoError(t, s.Release(first))
	_, ok, _ = s.Get("run")
	assert.False(t, ok)
}

func TestClaimStore_ConcurrentAcquireSingleWinner(t *testing.T) {
	dir := t.TempDir()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewClaimStore(dir, string(rune('a'+i)), time.Minute)
			if _, ok, err := s.Acquire("run"); err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestClaimStore_ExpiredClaimIsTakenOver(t *testing.T) {
	dir := t.TempDir()
	a := NewClaimStore(dir, "a", time.Minute)
	b := NewClaimStore(dir, "b", time.Minute)

	_, ok, err := a.Acquire("run")
	require.NoError(t, err)
	require.True(t, ok)

	b.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	claim, ok, err := b.Acquire("run")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", claim.Owner)
}

func TestClaimStore_ReleaseAfterTakeOverIsNoop(t *testing.T) {
	dir := t.TempDir()
	a := NewClaimStore(dir, "a", time.Minute)
	b := NewClaimStore(dir, "b", time.Minute)

	stale, _, err := a.Acquire("run")
	require.NoError(t, err)
	b.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	fresh, ok, err := b.Acquire("run")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Release(stale))
	assert.Error(t, a.Heartbeat(stale))

	got, ok, err := b.Get("run")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh.Token, got.Token)
}

func TestClaimStore_HeartbeatAndRelease(t *testing.T) {
	dir := t.TempDir()
	a := NewClaimStore(dir, "a", time.Minute)
	b := NewClaimStore(dir, "b", time.Minute)

	first, _, err := a.Acquire("run")
	require.NoError(t, err)

	base := time.Now().Add(30 * time.Second)
	a.now = func() time.Time { return base }
	require.NoError(t, a.Heartbeat(first))
	assert.Error(t, b.Heartbeat(Claim{Owner: "b", UniqueID: "run"}))

	got, ok, err := a.Get("run")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Expires.After(first.Expires))

	// Release of a claim not held is a no-op
	require.NoError(t, b.Release(Claim{Owner: "b", UniqueID: "run"}))
	_, ok, _ = a.Get("run")
	assert.True(t, ok)

	require.NoError(t, a.Release(first))
	_, ok, _ = a.Get("run")
	assert.False(t, ok)
}

func TestClaimStore_KeepAlive(t *testing.T) {
	s := NewClaimStore(t.TempDir(), "a", time.Minute)
	first, _, err := s.Acquire("run")
	require.NoError(t, err)

	stop := s.KeepAlive(context.Background(), first, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	stop()

	got, _, err := s.Get("run")
	require.NoError(t, err)
	assert.True(t, got.Heartbeat.After(first.Heartbeat))
}

func TestWaitForResult_WakesOnFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "run.json")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(target, []byte(`{}`), 0o644)
	}()

	err := WaitForResult(context.Background(), WaitOptions{
		Dir:      dir,
		Interval: time.Second,
		Timeout:  5 * time.Second,
	}, func() bool {
		_, err := os.Stat(target)
		return err == nil
	})

	assert.NoError(t, err)
}

func TestWaitForResult_TimesOut(t *testing.T) {
	err := WaitForResult(context.Background(), WaitOptions{
		Interval: 5 * time.Millisecond,
		Timeout:  30 * time.Millisecond,
	}, func() bool { return false })

	assert.ErrorIs(t, err, ErrStillProcessing)
}

func TestWaitForResult_Abandoned(t *testing.T) {
	err := WaitForResult(context.Background(), WaitOptions{
		Interval:  5 * time.Millisecond,
		Timeout:   time.Second,
		Abandoned: func() bool { return true },
	}, func() bool { return false })

	assert.ErrorIs(t, err, ErrAbandoned)
}
