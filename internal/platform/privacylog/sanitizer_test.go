package privacylog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func capture(t *testing.T, fn func(logger *slog.Logger)) string {
	t.Helper()
	var buf bytes.Buffer
	handler := WrapHandler(slog.NewTextHandler(&buf, nil))
	fn(slog.New(handler))
	return buf.String()
}

func TestPassphraseIsRedacted(t *testing.T) {
	out := capture(t, func(logger *slog.Logger) {
		logger.Info("unlock", "passphrase", "correct-horse")
	})
	if strings.Contains(out, "correct-horse") {
		t.Fatalf("passphrase leaked into log: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction marker, got: %s", out)
	}
}

func TestSignatureIsRedacted(t *testing.T) {
	out := capture(t, func(logger *slog.Logger) {
		logger.Info("verify", "signature_b64", "c2lnbmF0dXJl")
	})
	if strings.Contains(out, "c2lnbmF0dXJl") {
		t.Fatalf("signature leaked into log: %s", out)
	}
}

func TestUserIDIsFingerprinted(t *testing.T) {
	out := capture(t, func(logger *slog.Logger) {
		logger.Info("consent", "user_id", "alice")
	})
	if strings.Contains(out, "user_id=alice") {
		t.Fatalf("raw user id leaked into log: %s", out)
	}
	if !strings.Contains(out, "user_id_fp=fp_") {
		t.Fatalf("expected fingerprinted user id, got: %s", out)
	}
}

func TestFingerprintIsStableWithinBoot(t *testing.T) {
	if FingerprintID("alice") != FingerprintID("alice") {
		t.Fatal("fingerprint must be stable for the same value")
	}
	if FingerprintID("alice") == FingerprintID("bob") {
		t.Fatal("distinct values must not collide trivially")
	}
}

func TestPlainAttrsPassThrough(t *testing.T) {
	out := capture(t, func(logger *slog.Logger) {
		logger.Info("rpc request", "method", "admin.status")
	})
	if !strings.Contains(out, "method=admin.status") {
		t.Fatalf("benign attr was altered: %s", out)
	}
}
