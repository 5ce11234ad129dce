// Package consent implements the two-party handshake that authorizes an
// admin-requested action against a named user's data: the daemon mints a
// nonce bound to the user, the user's client signs it, and the admin
// submits the signature for verification.
package consent

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"promptpilot/trustd/internal/trusterr"
	"promptpilot/trustd/pkg/models"
)

const nonceEntropyBytes = 15

var (
	ErrNoPendingConsent = errors.New("no pending consent request")
	ErrNonceMismatch    = errors.New("consent nonce mismatch")
	ErrConsentExpired   = errors.New("consent request expired")
	ErrKeyMismatch      = errors.New("supplied key does not match the identity on file")
	ErrBadSignature     = errors.New("consent signature verification failed")
)

// KeyLookup resolves the verifying key on file for a user. Verification
// cross-checks the caller-supplied key against it, so a captured
// signature cannot be laundered through a substituted key.
type KeyLookup interface {
	PublicKey(userID string) (ed25519.PublicKey, error)
}

// Coordinator holds at most one pending consent request. A new request
// overwrites the previous one, which becomes permanently unsatisfiable
// (single-flight by design).
type Coordinator struct {
	keys KeyLookup

	mu       sync.Mutex
	userID   string
	nonce    string
	issuedAt time.Time

	ttl time.Duration
	now func() time.Time
}

// New creates a coordinator. A zero ttl disables consent expiry.
func New(keys KeyLookup, ttl time.Duration) *Coordinator {
	return &Coordinator{keys: keys, ttl: ttl, now: time.Now}
}

func newWithClock(keys KeyLookup, ttl time.Duration, now func() time.Time) *Coordinator {
	c := New(keys, ttl)
	c.now = now
	return c
}

// Request mints a consent challenge bound to userID, replacing any prior
// pending request.
func (c *Coordinator) Request(userID string) (models.ConsentChallenge, error) {
	buf := make([]byte, nonceEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return models.ConsentChallenge{}, trusterr.Wrap(trusterr.KindStorage, err)
	}
	nonce := base58.Encode(buf)

	c.mu.Lock()
	c.userID = userID
	c.nonce = nonce
	c.issuedAt = c.now()
	c.mu.Unlock()
	return models.ConsentChallenge{UserID: userID, Nonce: nonce}, nil
}

// Verify authorizes the pending request if (userID, nonce) matches the
// slot exactly and signatureB64 is a valid signature over the nonce by
// the identity's key on file. The caller supplies the key it believes it
// is dealing with; a mismatch with the directory is rejected.
func (c *Coordinator) Verify(userID, nonce, signatureB64, publicKeyB64 string) (bool, error) {
	c.mu.Lock()
	pendingUser, pendingNonce, issuedAt := c.userID, c.nonce, c.issuedAt
	c.mu.Unlock()

	if pendingNonce == "" {
		return false, trusterr.Wrap(trusterr.KindProtocol, ErrNoPendingConsent)
	}
	if pendingUser != userID || pendingNonce != nonce {
		return false, trusterr.Wrap(trusterr.KindProtocol, ErrNonceMismatch)
	}
	if c.ttl > 0 && c.now().Sub(issuedAt) > c.ttl {
		return false, trusterr.Wrap(trusterr.KindProtocol, ErrConsentExpired)
	}

	claimed, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return false, trusterr.Newf(trusterr.KindFormat, "malformed public key encoding: %v", err)
	}
	if len(claimed) != ed25519.PublicKeySize {
		return false, trusterr.Newf(trusterr.KindFormat, "public key has size %d, want %d", len(claimed), ed25519.PublicKeySize)
	}
	onFile, err := c.keys.PublicKey(userID)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare(claimed, onFile) != 1 {
		return false, trusterr.Wrap(trusterr.KindAuth, ErrKeyMismatch)
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, trusterr.Newf(trusterr.KindAuth, "malformed signature encoding: %v", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, trusterr.Newf(trusterr.KindAuth, "signature has size %d, want %d", len(sig), ed25519.SignatureSize)
	}
	if !ed25519.Verify(onFile, []byte(nonce), sig) {
		return false, trusterr.Wrap(trusterr.KindAuth, ErrBadSignature)
	}
	return true, nil
}
