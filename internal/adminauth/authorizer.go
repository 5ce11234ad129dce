// Package adminauth gates admin mode behind a challenge-response protocol:
// the operator signs a freshly issued nonce with the provisioned admin key.
package adminauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"promptpilot/trustd/internal/trusterr"
)

const nonceEntropyBytes = 24

var (
	ErrNoPendingChallenge = errors.New("no pending admin challenge")
	ErrChallengeExpired   = errors.New("admin challenge expired")
	ErrBadSignature       = errors.New("admin signature verification failed")
)

// Authorizer is the process-wide admin session: at most one outstanding
// nonce, and an unlocked flag that decays after unlockTTL.
//
// State machine: Locked -> NonceIssued -> Unlocked, where any failed
// verification consumes the nonce and falls back to Locked.
type Authorizer struct {
	anchor *TrustAnchor

	mu        sync.Mutex
	nonce     string
	issuedAt  time.Time
	unlocked  bool
	expiresAt time.Time

	nonceTTL  time.Duration
	unlockTTL time.Duration
	now       func() time.Time
}

// New creates an authorizer. A zero TTL disables the corresponding expiry
// (the original desktop behavior of sessions living until restart).
func New(anchor *TrustAnchor, nonceTTL, unlockTTL time.Duration) *Authorizer {
	return &Authorizer{
		anchor:    anchor,
		nonceTTL:  nonceTTL,
		unlockTTL: unlockTTL,
		now:       time.Now,
	}
}

func newWithClock(anchor *TrustAnchor, nonceTTL, unlockTTL time.Duration, now func() time.Time) *Authorizer {
	a := New(anchor, nonceTTL, unlockTTL)
	a.now = now
	return a
}

// IssueNonce mints a fresh unguessable challenge, invalidating any prior
// unconsumed one.
func (a *Authorizer) IssueNonce() (string, error) {
	buf := make([]byte, nonceEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", trusterr.Wrap(trusterr.KindStorage, err)
	}
	nonce := base58.Encode(buf)

	a.mu.Lock()
	a.nonce = nonce
	a.issuedAt = a.now()
	a.mu.Unlock()
	return nonce, nil
}

// Verify checks signatureB64 over the outstanding nonce against the admin
// trust anchor. The nonce is single-use: it is consumed whether or not
// verification succeeds.
func (a *Authorizer) Verify(signatureB64 string) (bool, error) {
	a.mu.Lock()
	nonce := a.nonce
	issuedAt := a.issuedAt
	a.nonce = ""
	a.mu.Unlock()

	if nonce == "" {
		return false, trusterr.Wrap(trusterr.KindProtocol, ErrNoPendingChallenge)
	}
	now := a.now()
	if a.nonceTTL > 0 && now.Sub(issuedAt) > a.nonceTTL {
		return false, trusterr.Wrap(trusterr.KindProtocol, ErrChallengeExpired)
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, trusterr.Newf(trusterr.KindAuth, "malformed signature encoding: %v", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, trusterr.Newf(trusterr.KindAuth, "signature has size %d, want %d", len(sig), ed25519.SignatureSize)
	}
	key, err := a.anchor.Key()
	if err != nil {
		return false, err
	}
	if !ed25519.Verify(key, []byte(nonce), sig) {
		return false, trusterr.Wrap(trusterr.KindAuth, ErrBadSignature)
	}

	a.mu.Lock()
	a.unlocked = true
	if a.unlockTTL > 0 {
		a.expiresAt = now.Add(a.unlockTTL)
	} else {
		a.expiresAt = time.Time{}
	}
	a.mu.Unlock()
	return true, nil
}

// Status reports whether admin mode is currently unlocked, accounting for
// unlock expiry.
func (a *Authorizer) Status() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.unlocked {
		return false
	}
	if !a.expiresAt.IsZero() && a.now().After(a.expiresAt) {
		a.unlocked = false
		return false
	}
	return true
}
