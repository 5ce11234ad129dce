// Package trustcore wires key custody, the identity directory, the admin
// authorizer, the consent coordinator and the audit ledger into the
// surface the RPC layer exposes. Every authorizer and coordinator
// transition, including failed attempts, leaves a trace in the ledger.
package trustcore

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"promptpilot/trustd/internal/adminauth"
	"promptpilot/trustd/internal/capability"
	"promptpilot/trustd/internal/config"
	"promptpilot/trustd/internal/consent"
	"promptpilot/trustd/internal/directory"
	"promptpilot/trustd/internal/keycustody"
	"promptpilot/trustd/internal/ledger"
	"promptpilot/trustd/internal/trusterr"
	"promptpilot/trustd/pkg/models"
)

type Service struct {
	keys    *keycustody.Store
	dir     *directory.Directory
	admin   *adminauth.Authorizer
	consent *consent.Coordinator
	ledger  *ledger.Ledger
	log     *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir, err := directory.Open(filepath.Join(cfg.DataDir, "profiles.db"))
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(filepath.Join(cfg.DataDir, "admin_logs.db"))
	if err != nil {
		dir.Close()
		return nil, err
	}
	anchor := adminauth.NewTrustAnchor(cfg.AdminKeyPath)
	return &Service{
		keys:    keycustody.NewStore(cfg.DataDir),
		dir:     dir,
		admin:   adminauth.New(anchor, cfg.AdminNonceTTL, cfg.AdminUnlockTTL),
		consent: consent.New(dir, cfg.ConsentTTL),
		ledger:  led,
		log:     logger,
	}, nil
}

func (s *Service) Close() error {
	err := s.dir.Close()
	if lerr := s.ledger.Close(); err == nil {
		err = lerr
	}
	return err
}

// audit appends a required trace for a state change that already
// happened. Failing to record it is surfaced as a storage error rather
// than silently leaving the operation unaudited.
func (s *Service) audit(event string) error {
	if _, err := s.ledger.Append(event); err != nil {
		s.log.Error("audit append failed", "event", event, "error", err)
		return trusterr.Wrap(trusterr.KindStorage, err)
	}
	return nil
}

// auditBestEffort records the trace of an operation that already failed;
// the original error stays the caller-visible one.
func (s *Service) auditBestEffort(event string) {
	if _, err := s.ledger.Append(event); err != nil {
		s.log.Error("audit append failed", "event", event, "error", err)
	}
}

// IssueAdminNonce mints a fresh admin challenge.
func (s *Service) IssueAdminNonce() (string, error) {
	nonce, err := s.admin.IssueNonce()
	if err != nil {
		return "", err
	}
	if err := s.audit("admin.nonce_issued"); err != nil {
		return "", err
	}
	s.log.Info("admin nonce issued")
	return nonce, nil
}

// VerifyAdmin checks the operator's signature over the outstanding nonce
// and unlocks admin mode on success.
func (s *Service) VerifyAdmin(signatureB64 string) (bool, error) {
	ok, err := s.admin.Verify(signatureB64)
	if err != nil {
		s.auditBestEffort(fmt.Sprintf("admin.unlock_failed kind=%s", trusterr.KindOf(err)))
		s.log.Warn("admin unlock failed", "kind", trusterr.KindOf(err))
		return false, err
	}
	if err := s.audit("admin.unlock_ok"); err != nil {
		return false, err
	}
	s.log.Info("admin mode unlocked")
	return ok, nil
}

func (s *Service) AdminStatus() bool {
	return s.admin.Status()
}

// RequestConsent mints a consent challenge bound to userID.
func (s *Service) RequestConsent(userID string) (models.ConsentChallenge, error) {
	if !keycustody.ValidUserID(userID) {
		return models.ConsentChallenge{}, trusterr.Wrap(trusterr.KindFormat, keycustody.ErrInvalidUserID)
	}
	// Challenges are never minted for identities that could not verify them.
	if _, err := s.dir.PublicKey(userID); err != nil {
		return models.ConsentChallenge{}, err
	}
	challenge, err := s.consent.Request(userID)
	if err != nil {
		return models.ConsentChallenge{}, err
	}
	if err := s.audit(fmt.Sprintf("consent.requested user=%s", userID)); err != nil {
		return models.ConsentChallenge{}, err
	}
	s.log.Info("consent requested", "user_id", userID)
	return challenge, nil
}

// VerifyConsent checks the named user's counter-signature over the
// pending consent nonce.
func (s *Service) VerifyConsent(userID, nonce, signatureB64, publicKeyB64 string) (bool, error) {
	ok, err := s.consent.Verify(userID, nonce, signatureB64, publicKeyB64)
	if err != nil {
		s.auditBestEffort(fmt.Sprintf("consent.rejected user=%s kind=%s", userID, trusterr.KindOf(err)))
		s.log.Warn("consent rejected", "user_id", userID, "kind", trusterr.KindOf(err))
		return false, err
	}
	if err := s.audit(fmt.Sprintf("consent.verified user=%s", userID)); err != nil {
		return false, err
	}
	s.log.Info("consent verified", "user_id", userID)
	return ok, nil
}

// CreateIdentity generates a keypair for userID, persists the encrypted
// artifacts and the directory row, and returns the profile plus the
// one-time recovery mnemonic.
func (s *Service) CreateIdentity(userID, displayName, passphrase string) (models.Profile, string, error) {
	if !keycustody.ValidUserID(userID) {
		return models.Profile{}, "", trusterr.Wrap(trusterr.KindFormat, keycustody.ErrInvalidUserID)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = userID
	}
	id, err := keycustody.GenerateIdentity(passphrase)
	if err != nil {
		return models.Profile{}, "", err
	}
	profile, err := s.persistIdentity(userID, displayName, id)
	if err != nil {
		return models.Profile{}, "", err
	}
	return profile, id.Mnemonic, nil
}

// RecoverIdentity rebuilds an identity from its recovery phrase under a
// new passphrase, overwriting the stored artifacts.
func (s *Service) RecoverIdentity(userID, displayName, mnemonic, passphrase string) (models.Profile, error) {
	if !keycustody.ValidUserID(userID) {
		return models.Profile{}, trusterr.Wrap(trusterr.KindFormat, keycustody.ErrInvalidUserID)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = userID
	}
	id, err := keycustody.RecoverIdentity(mnemonic, passphrase)
	if err != nil {
		return models.Profile{}, err
	}
	return s.persistIdentity(userID, displayName, id)
}

func (s *Service) persistIdentity(userID, displayName string, id *keycustody.Identity) (models.Profile, error) {
	if err := s.keys.Save(userID, id.PublicKey, id.Blob); err != nil {
		return models.Profile{}, err
	}
	if err := s.dir.Put(userID, displayName, id.PublicKey); err != nil {
		return models.Profile{}, err
	}
	if err := s.audit(fmt.Sprintf("profile.created user=%s", userID)); err != nil {
		return models.Profile{}, err
	}
	s.log.Info("profile created", "user_id", userID)
	return models.Profile{
		UserID:      userID,
		DisplayName: displayName,
		PublicKey:   base64.StdEncoding.EncodeToString(id.PublicKey),
	}, nil
}

// ListIdentities returns all profiles, most recently created first.
func (s *Service) ListIdentities() ([]models.Profile, error) {
	return s.dir.List()
}

// UnlockIdentity proves the passphrase decrypts userID's private key.
// The decrypted key is discarded; only the proof result leaves custody.
func (s *Service) UnlockIdentity(userID, passphrase string) (bool, error) {
	if _, err := s.keys.Unlock(userID, passphrase); err != nil {
		s.auditBestEffort(fmt.Sprintf("profile.unlock_failed user=%s kind=%s", userID, trusterr.KindOf(err)))
		s.log.Warn("profile unlock failed", "user_id", userID, "kind", trusterr.KindOf(err))
		return false, err
	}
	if err := s.audit(fmt.Sprintf("profile.unlock_ok user=%s", userID)); err != nil {
		return false, err
	}
	return true, nil
}

// GetPublicKey returns the base64 verifying key stored on disk for
// userID.
func (s *Service) GetPublicKey(userID string) (string, error) {
	pub, err := s.keys.LoadPublicKey(userID)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

// AppendAuditEvent links an arbitrary event onto the chain.
func (s *Service) AppendAuditEvent(event string) (string, error) {
	if strings.TrimSpace(event) == "" {
		return "", trusterr.New(trusterr.KindFormat, "audit event must not be empty")
	}
	return s.ledger.Append(event)
}

func (s *Service) AuditHead() (string, error) {
	return s.ledger.Head()
}

func (s *Service) RecentAuditEntries(limit int) ([]models.AuditEntry, error) {
	return s.ledger.Recent(limit)
}

func (s *Service) VerifyAuditChain() (bool, int64, error) {
	return s.ledger.VerifyChain()
}

// CheckCapability reports whether a capability string names a permitted
// operation.
func (s *Service) CheckCapability(name string) (bool, error) {
	c, err := capability.Parse(name)
	if err != nil {
		return false, err
	}
	return capability.Allowed(c), nil
}
