package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sagekit/sagekit/pkg/db"
	"github.com/sagekit/sagekit/pkg/event"
	"github.com/sagekit/sagekit/pkg/models"
)

func newTestAuth(t *testing.T, f *fakeTransport) (*AuthService, *event.Emitter, *db.ProfileStore) {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "auth_test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	profiles := db.NewProfileStore(gdb)
	emitter := event.NewEmitter(nil)
	return NewAuthService(f, emitter, profiles, testConfig(), testLogger()), emitter, profiles
}

func identityHandler(f *fakeTransport, id string) {
	f.onCommand["identity"] = func() (any, error) {
		return models.IdentityInfo{ID: id}, nil
	}
}

func TestAuthService_StartSyncsIdentity(t *testing.T) {
	f := newFakeTransport()
	identityHandler(f, "alice")

	svc, _, _ := newTestAuth(t, f)
	var resets []string
	var mu sync.Mutex
	svc.SetResetHook(func(userID string) {
		mu.Lock()
		resets = append(resets, userID)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	if got := svc.Current().ID; got != "alice" {
		t.Fatalf("Current().ID = %q, want alice", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(resets) != 1 || resets[0] != "alice" {
		t.Fatalf("resets = %v, want [alice]", resets)
	}
}

func TestAuthService_ApplyIdempotent(t *testing.T) {
	f := newFakeTransport()
	identityHandler(f, "alice")

	svc, emitter, _ := newTestAuth(t, f)
	var resets, events int
	var mu sync.Mutex
	svc.SetResetHook(func(string) {
		mu.Lock()
		resets++
		mu.Unlock()
	})
	emitter.On(event.IdentityChanged, func(event.Event) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	// Re-reading the same identity must not fire events or resets again.
	if err := svc.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if err := svc.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if resets != 1 {
		t.Fatalf("resets = %d, want 1", resets)
	}
	if events != 1 {
		t.Fatalf("identity events = %d, want 1", events)
	}
}

func TestAuthService_HostEventTriggersResync(t *testing.T) {
	f := newFakeTransport()
	identityHandler(f, models.AnonymousID)

	svc, _, _ := newTestAuth(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	if !svc.Current().IsAnonymous() {
		t.Fatalf("expected anonymous identity at start")
	}

	// The host signs in and notifies; after the settle delay the service
	// re-reads identity and picks up the new principal.
	identityHandler(f, "bob")
	f.fire("IdentityChanged", models.IdentityInfo{ID: "bob"})

	waitFor(t, time.Second, func() bool { return svc.Current().ID == "bob" })
}

func TestAuthService_EventPayloadFallbackWhenSyncFails(t *testing.T) {
	f := newFakeTransport()
	f.onCommand["identity"] = func() (any, error) {
		return nil, errors.New("host unreachable")
	}

	svc, _, _ := newTestAuth(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err == nil {
		t.Fatalf("Start() expected initial sync error")
	}
	defer svc.Stop()

	// Even though re-reading fails, the event payload itself is applied.
	f.fire("IdentityChanged", models.IdentityInfo{ID: "carol"})

	waitFor(t, time.Second, func() bool { return svc.Current().ID == "carol" })
}

func TestAuthService_GetUserCachesAndFallsBack(t *testing.T) {
	f := newFakeTransport()
	identityHandler(f, "alice")
	f.onCommand["get_user"] = func() (any, error) {
		return models.UserInfo{ID: "alice", Name: "Alice"}, nil
	}

	svc, _, profiles := newTestAuth(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	info, err := svc.GetUser(ctx)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if info.Name != "Alice" {
		t.Fatalf("GetUser().Name = %q, want Alice", info.Name)
	}

	// Profile must be cached locally.
	if cached, err := profiles.Get("alice"); err != nil || cached.Name != "Alice" {
		t.Fatalf("profiles.Get(alice) = %+v, %v", cached, err)
	}

	// Host goes away: the cached snapshot is served instead.
	f.onCommand["get_user"] = func() (any, error) {
		return nil, errors.New("host unreachable")
	}
	info, err = svc.GetUser(ctx)
	if err != nil {
		t.Fatalf("GetUser() with cache error = %v", err)
	}
	if info.Name != "Alice" {
		t.Fatalf("cached GetUser().Name = %q, want Alice", info.Name)
	}
}

func TestAuthService_GetUserNoCacheSurfacesError(t *testing.T) {
	f := newFakeTransport()
	identityHandler(f, "alice")
	f.onCommand["get_user"] = func() (any, error) {
		return nil, errors.New("host unreachable")
	}

	svc, _, _ := newTestAuth(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	if _, err := svc.GetUser(ctx); err == nil {
		t.Fatalf("expected error when host is down and no cache exists")
	}
}
