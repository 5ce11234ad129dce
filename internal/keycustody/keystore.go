package keycustody

import (
	"crypto/ed25519"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"promptpilot/trustd/internal/trusterr"
)

const (
	privFileName = "priv.enc"
	pubFileName  = "pub.bin"
)

var (
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrInvalidUserID   = errors.New("invalid user id")

	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

// Store keeps one directory per identity under <root>/profiles/<user_id>
// holding the encrypted private key and the raw public key.
type Store struct {
	root string
}

func NewStore(dataDir string) *Store {
	return &Store{root: filepath.Join(dataDir, "profiles")}
}

// ValidUserID rejects identifiers that could escape the profiles directory
// or collide with filesystem special names.
func ValidUserID(userID string) bool {
	return userIDPattern.MatchString(userID)
}

func (s *Store) profileDir(userID string) (string, error) {
	if !ValidUserID(userID) {
		return "", trusterr.Wrap(trusterr.KindFormat, ErrInvalidUserID)
	}
	return filepath.Join(s.root, userID), nil
}

// Save persists the artifact pair for userID, overwriting any previous
// identity of the same name.
func (s *Store) Save(userID string, pub ed25519.PublicKey, blob []byte) error {
	dir, err := s.profileDir(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return trusterr.Wrap(trusterr.KindStorage, err)
	}
	if err := os.WriteFile(filepath.Join(dir, privFileName), blob, 0o600); err != nil {
		return trusterr.Wrap(trusterr.KindStorage, err)
	}
	if err := os.WriteFile(filepath.Join(dir, pubFileName), pub, 0o600); err != nil {
		return trusterr.Wrap(trusterr.KindStorage, err)
	}
	return nil
}

// LoadBlob returns the encrypted private-key blob for userID.
func (s *Store) LoadBlob(userID string) ([]byte, error) {
	dir, err := s.profileDir(userID)
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(filepath.Join(dir, privFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, trusterr.Wrap(trusterr.KindStorage, ErrUnknownIdentity)
		}
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	return blob, nil
}

// LoadPublicKey returns the raw public key artifact for userID.
func (s *Store) LoadPublicKey(userID string) (ed25519.PublicKey, error) {
	dir, err := s.profileDir(userID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, pubFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, trusterr.Wrap(trusterr.KindStorage, ErrUnknownIdentity)
		}
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, trusterr.New(trusterr.KindFormat, "stored public key has wrong size")
	}
	return ed25519.PublicKey(raw), nil
}

// Unlock decrypts the stored private key for userID, proving the
// passphrase without returning key material to the caller layer.
func (s *Store) Unlock(userID, passphrase string) (ed25519.PrivateKey, error) {
	blob, err := s.LoadBlob(userID)
	if err != nil {
		return nil, err
	}
	return Open(blob, passphrase)
}
