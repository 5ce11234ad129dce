package directory

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDirectory(t *testing.T) *Directory {
	t.Helper()
	dir, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	t.Cleanup(func() { dir.Close() })
	return dir
}

func newKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub
}

func TestPutAndPublicKey(t *testing.T) {
	dir := openTestDirectory(t)
	pub := newKey(t)
	if err := dir.Put("alice", "Alice", pub); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := dir.PublicKey("alice")
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !bytes.Equal(got, pub) {
		t.Fatal("stored key differs")
	}
}

func TestPublicKeyNotFound(t *testing.T) {
	dir := openTestDirectory(t)
	if _, err := dir.PublicKey("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	dir := openTestDirectory(t)
	first := newKey(t)
	second := newKey(t)
	if err := dir.Put("alice", "Alice", first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := dir.Put("alice", "Alice Again", second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	got, err := dir.PublicKey("alice")
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Fatal("overwrite did not replace the key")
	}
	profiles, err := dir.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected a single profile, got %d", len(profiles))
	}
	if profiles[0].DisplayName != "Alice Again" {
		t.Fatalf("display name not updated: %q", profiles[0].DisplayName)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := openTestDirectory(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		if err := dir.Put(id, id, newKey(t)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	profiles, err := dir.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	if profiles[0].UserID != "carol" || profiles[2].UserID != "alice" {
		t.Fatalf("unexpected order: %s, %s, %s", profiles[0].UserID, profiles[1].UserID, profiles[2].UserID)
	}
	raw, err := base64.StdEncoding.DecodeString(profiles[0].PublicKey)
	if err != nil {
		t.Fatalf("public key is not base64: %v", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		t.Fatalf("decoded key has size %d", len(raw))
	}
}
