package db

import (
	"path/filepath"
	"testing"

	"github.com/sagekit/sagekit/pkg/models"
)

func openTestDB(t *testing.T) *ProfileStore {
	t.Helper()
	gdb, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return NewProfileStore(gdb)
}

func TestProfileStore_PutGet(t *testing.T) {
	store := openTestDB(t)

	username := "alice"
	in := &models.UserInfo{
		ID:       "aaaaa-aa",
		Name:     "Alice",
		Image:    "https://example.com/a.png",
		Username: &username,
	}
	if err := store.Put(in); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get("aaaaa-aa")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Alice" || got.Username == nil || *got.Username != "alice" {
		t.Fatalf("Get() = %+v, want round-tripped profile", got)
	}
}

func TestProfileStore_PutOverwrites(t *testing.T) {
	store := openTestDB(t)

	if err := store.Put(&models.UserInfo{ID: "u1", Name: "Old"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(&models.UserInfo{ID: "u1", Name: "New"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get("u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "New" {
		t.Fatalf("Get().Name = %q, want %q", got.Name, "New")
	}
}

func TestProfileStore_GetMissing(t *testing.T) {
	store := openTestDB(t)

	if _, err := store.Get("nobody"); err != ErrProfileNotFound {
		t.Fatalf("Get() error = %v, want ErrProfileNotFound", err)
	}
}
