// Package keycustody generates per-identity ed25519 keypairs and keeps the
// private half encrypted at rest under a passphrase-derived key.
package keycustody

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"promptpilot/trustd/internal/trusterr"
)

const (
	saltSize = 16
	// Encrypted blob layout: salt ‖ 24-byte XChaCha20 nonce ‖ ciphertext+tag.
	minBlobSize = saltSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

	argonTime     = 2
	argonMemoryKB = 64 * 1024
	argonThreads  = 1
)

var (
	// ErrCredential covers wrong passphrase, truncated blob and tag
	// mismatch alike. Callers must not be able to tell which one it was.
	ErrCredential         = errors.New("key decrypt failed")
	ErrPassphraseRequired = errors.New("passphrase is required")
	ErrInvalidMnemonic    = errors.New("invalid recovery mnemonic")
)

// Identity is a freshly generated keypair together with its at-rest
// artifacts. Persisting them is the caller's responsibility.
type Identity struct {
	PublicKey ed25519.PublicKey
	Blob      []byte // encrypted private-key seed
	Mnemonic  string // recovery phrase, shown once and never stored
}

// GenerateIdentity creates an ed25519 keypair from fresh 256-bit entropy
// and seals the private seed under passphrase. The recovery mnemonic
// reproduces the same keypair via RecoverIdentity.
func GenerateIdentity(passphrase string) (*Identity, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, trusterr.Wrap(trusterr.KindCredential, ErrPassphraseRequired)
	}
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	return identityFromMnemonic(mnemonic, passphrase)
}

// RecoverIdentity rebuilds a keypair from its recovery phrase and seals it
// under a new passphrase. The resulting public key matches the original.
func RecoverIdentity(mnemonic, passphrase string) (*Identity, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, trusterr.Wrap(trusterr.KindCredential, ErrPassphraseRequired)
	}
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, trusterr.Wrap(trusterr.KindFormat, ErrInvalidMnemonic)
	}
	return identityFromMnemonic(mnemonic, passphrase)
}

func identityFromMnemonic(mnemonic, passphrase string) (*Identity, error) {
	seedBytes := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seedBytes[:ed25519.SeedSize])
	blob, err := Seal(priv, passphrase)
	if err != nil {
		return nil, err
	}
	return &Identity{
		PublicKey: priv.Public().(ed25519.PublicKey),
		Blob:      blob,
		Mnemonic:  mnemonic,
	}, nil
}

// Seal encrypts the 32-byte private seed of priv with a key derived from
// passphrase via salted argon2id, under a fresh random XChaCha20 nonce.
func Seal(priv ed25519.PrivateKey, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}

	blob := make([]byte, 0, minBlobSize+ed25519.SeedSize)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, priv.Seed(), nil)
	return blob, nil
}

// Open decrypts and authenticates a sealed blob. Every failure mode maps
// to the same ErrCredential so a caller cannot probe blob structure.
func Open(blob []byte, passphrase string) (ed25519.PrivateKey, error) {
	if len(blob) < minBlobSize {
		return nil, trusterr.Wrap(trusterr.KindCredential, ErrCredential)
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := blob[saltSize+chacha20poly1305.NonceSizeX:]

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindCredential, ErrCredential)
	}
	seed, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindCredential, ErrCredential)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, trusterr.Wrap(trusterr.KindCredential, ErrCredential)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	zeroBytes(seed)
	return priv, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemoryKB, argonThreads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
