package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newLeaseClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client
}

func TestRedisLeaseExcludesSecondHolder(t *testing.T) {
	m, client := newLeaseClient(t)
	first := NewRedisLease(client, "todo:lease", time.Minute)
	second := NewRedisLease(client, "todo:lease", time.Minute)

	release, err := first.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !m.Exists("todo:lease") {
		t.Fatalf("expected lease key to be set")
	}
	if ttl := m.TTL("todo:lease"); ttl != time.Minute {
		t.Fatalf("unexpected lease ttl: %v", ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := second.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second holder to time out, got %v", err)
	}

	release()
	if m.Exists("todo:lease") {
		t.Fatalf("expected lease key to be removed on release")
	}
	releaseSecond, err := second.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	releaseSecond()
}

func TestRedisLeaseWaitsForRelease(t *testing.T) {
	_, client := newLeaseClient(t)
	lease := NewRedisLease(client, "todo:lease", time.Minute)

	release, err := lease.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rel, err := lease.Acquire(ctx)
		if err == nil {
			rel()
		}
		acquired <- err
	}()

	select {
	case err := <-acquired:
		t.Fatalf("second acquire returned while lease was held: %v", err)
	case <-time.After(75 * time.Millisecond):
	}
	release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second acquire: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("second acquire never completed")
	}
}

func TestRedisLeaseReleaseKeepsForeignLease(t *testing.T) {
	m, client := newLeaseClient(t)
	lease := NewRedisLease(client, "todo:lease", time.Second)
	lease.token = func() string { return "ours" }

	release, err := lease.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// our lease lapses and another writer takes it
	m.FastForward(2 * time.Second)
	if err := m.Set("todo:lease", "theirs"); err != nil {
		t.Fatalf("seed foreign lease: %v", err)
	}

	release()
	got, err := m.Get("todo:lease")
	if err != nil {
		t.Fatalf("get lease: %v", err)
	}
	if got != "theirs" {
		t.Fatalf("release removed another holder's lease, key=%q", got)
	}
}

func TestRedisLeaseReleaseLogsExpiredLease(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	m, client := newLeaseClient(t)
	lease := NewRedisLease(client, "todo:lease", time.Second)
	release, err := lease.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.FastForward(2 * time.Second)
	release()

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected warning, got %#v", entry)
	}
	if err, _ := entry.Data[log.ErrorKey].(error); !errors.Is(err, ErrLeaseNotHeld) {
		t.Fatalf("expected ErrLeaseNotHeld, got %v", entry.Data[log.ErrorKey])
	}
}

func TestRedisLeaseDefaults(t *testing.T) {
	_, client := newLeaseClient(t)
	lease := NewRedisLease(client, "k", 0)
	if lease.ttl != 10*time.Second {
		t.Fatalf("unexpected default ttl: %v", lease.ttl)
	}
}

func TestLocalGuardSerialisesWriters(t *testing.T) {
	var guard LocalGuard
	release, err := guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	done := make(chan struct{})
	go func() {
		rel, _ := guard.Acquire(context.Background())
		rel()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("second writer entered while guard was held")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second writer never acquired the guard")
	}
}

func TestCacheWithRedisLease(t *testing.T) {
	m, client := newLeaseClient(t)
	base := &stubBackend{doc: groceries()}
	cache := NewCache(base, NewRedisLease(client, "todo:lease", time.Minute), DefaultTTL, nil)

	if _, err := cache.ToggleTask(context.Background(), "L1", "T1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !base.doc.Lists[0].Tasks[0].Completed {
		t.Fatalf("expected toggle to be written")
	}
	if m.Exists("todo:lease") {
		t.Fatalf("expected lease to be released after write")
	}
}
