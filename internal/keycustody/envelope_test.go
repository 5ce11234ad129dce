package keycustody

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"promptpilot/trustd/internal/trusterr"
)

func TestSealOpenRoundtrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	blob, err := Seal(priv, "correct-horse")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	got, err := Open(blob, "correct-horse")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(got, priv) {
		t.Fatal("recovered private key differs from original")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	blob, err := Seal(priv, "correct-horse")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	_, err = Open(blob, "wrong")
	if !errors.Is(err, ErrCredential) {
		t.Fatalf("expected ErrCredential, got %v", err)
	}
	if !trusterr.IsKind(err, trusterr.KindCredential) {
		t.Fatalf("expected credential kind, got %s", trusterr.KindOf(err))
	}
}

func TestOpenTamperedBlob(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	blob, err := Seal(priv, "pass")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF
	if _, err := Open(blob, "pass"); !errors.Is(err, ErrCredential) {
		t.Fatalf("expected ErrCredential for tampered blob, got %v", err)
	}
}

func TestOpenTruncatedBlob(t *testing.T) {
	if _, err := Open(make([]byte, 10), "pass"); !errors.Is(err, ErrCredential) {
		t.Fatalf("expected ErrCredential for truncated blob, got %v", err)
	}
}

func TestWrongPassphraseAndTamperAreIndistinguishable(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	blob, _ := Seal(priv, "pass")
	_, errWrongPass := Open(blob, "other")
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01
	_, errTampered := Open(tampered, "pass")
	if errWrongPass.Error() != errTampered.Error() {
		t.Fatalf("error oracle: %q vs %q", errWrongPass, errTampered)
	}
}

func TestGenerateIdentity(t *testing.T) {
	id, err := GenerateIdentity("correct-horse")
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	if len(id.PublicKey) != ed25519.PublicKeySize {
		t.Fatalf("unexpected public key size %d", len(id.PublicKey))
	}
	if id.Mnemonic == "" {
		t.Fatal("expected a recovery mnemonic")
	}
	priv, err := Open(id.Blob, "correct-horse")
	if err != nil {
		t.Fatalf("open generated blob: %v", err)
	}
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), id.PublicKey) {
		t.Fatal("blob does not contain the matching private key")
	}
}

func TestGenerateIdentityEmptyPassphrase(t *testing.T) {
	if _, err := GenerateIdentity("  "); !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("expected ErrPassphraseRequired, got %v", err)
	}
}

func TestRecoverIdentityReproducesKeypair(t *testing.T) {
	original, err := GenerateIdentity("first-pass")
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	recovered, err := RecoverIdentity(original.Mnemonic, "second-pass")
	if err != nil {
		t.Fatalf("recover identity: %v", err)
	}
	if !bytes.Equal(original.PublicKey, recovered.PublicKey) {
		t.Fatal("recovered public key differs from original")
	}
	if _, err := Open(recovered.Blob, "second-pass"); err != nil {
		t.Fatalf("recovered blob must open under new passphrase: %v", err)
	}
}

func TestRecoverIdentityRejectsBadMnemonic(t *testing.T) {
	_, err := RecoverIdentity("definitely not twenty four valid words", "pass")
	if !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}
