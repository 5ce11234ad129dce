package keycustody

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"promptpilot/trustd/internal/trusterr"
)

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	store := NewStore(t.TempDir())
	id, err := GenerateIdentity("pass")
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	if err := store.Save("alice", id.PublicKey, id.Blob); err != nil {
		t.Fatalf("save: %v", err)
	}

	pub, err := store.LoadPublicKey("alice")
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	if !bytes.Equal(pub, id.PublicKey) {
		t.Fatal("stored public key differs")
	}

	priv, err := store.Unlock("alice", "pass")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), id.PublicKey) {
		t.Fatal("unlocked key does not match stored public key")
	}
}

func TestStoreUnlockWrongPassphrase(t *testing.T) {
	store := NewStore(t.TempDir())
	id, _ := GenerateIdentity("pass")
	if err := store.Save("alice", id.PublicKey, id.Blob); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Unlock("alice", "wrong"); !errors.Is(err, ErrCredential) {
		t.Fatalf("expected ErrCredential, got %v", err)
	}
}

func TestStoreUnknownIdentity(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.LoadPublicKey("nobody"); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestStoreRejectsTraversalUserID(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, bad := range []string{"../evil", "a/b", "", ".hidden", "name with space"} {
		_, err := store.LoadBlob(bad)
		if !errors.Is(err, ErrInvalidUserID) {
			t.Fatalf("user id %q: expected ErrInvalidUserID, got %v", bad, err)
		}
		if !trusterr.IsKind(err, trusterr.KindFormat) {
			t.Fatalf("user id %q: expected format kind, got %s", bad, trusterr.KindOf(err))
		}
	}
}

func TestStoreOverwriteReplacesIdentity(t *testing.T) {
	store := NewStore(t.TempDir())
	first, _ := GenerateIdentity("pass1")
	second, _ := GenerateIdentity("pass2")
	if err := store.Save("alice", first.PublicKey, first.Blob); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save("alice", second.PublicKey, second.Blob); err != nil {
		t.Fatalf("save second: %v", err)
	}
	pub, err := store.LoadPublicKey("alice")
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	if !bytes.Equal(pub, second.PublicKey) {
		t.Fatal("overwrite did not replace the stored key")
	}
	if _, err := store.Unlock("alice", "pass1"); !errors.Is(err, ErrCredential) {
		t.Fatalf("old passphrase must no longer unlock: %v", err)
	}
}
