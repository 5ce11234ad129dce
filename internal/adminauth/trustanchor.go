package adminauth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"strings"
	"sync"

	"promptpilot/trustd/internal/trusterr"
)

// TrustAnchor is the single pre-provisioned admin verifying key. It is
// loaded once from disk at first use; a missing or malformed file is a
// configuration error surfaced to the first admin operation.
type TrustAnchor struct {
	path string

	once sync.Once
	key  ed25519.PublicKey
	err  error
}

func NewTrustAnchor(path string) *TrustAnchor {
	return &TrustAnchor{path: path}
}

func (a *TrustAnchor) Key() (ed25519.PublicKey, error) {
	a.once.Do(func() {
		a.key, a.err = loadAnchorKey(a.path)
	})
	return a.key, a.err
}

func loadAnchorKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, trusterr.Newf(trusterr.KindConfig, "admin trust anchor %s: %v", path, err)
	}
	key, err := parseAnchorKey(raw)
	if err != nil {
		return nil, trusterr.Newf(trusterr.KindConfig, "admin trust anchor %s: %v", path, err)
	}
	return key, nil
}

// parseAnchorKey accepts a PEM PUBLIC KEY block (PKIX DER), a PEM block
// holding the raw 32-byte key, or a bare base64 body.
func parseAnchorKey(raw []byte) (ed25519.PublicKey, error) {
	der := []byte(nil)
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, trusterr.New(trusterr.KindConfig, "not PEM and not base64")
		}
		der = decoded
	}
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		edKey, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, trusterr.New(trusterr.KindConfig, "anchor key is not ed25519")
		}
		return edKey, nil
	}
	if len(der) == ed25519.PublicKeySize {
		return ed25519.PublicKey(der), nil
	}
	return nil, trusterr.New(trusterr.KindConfig, "anchor key is neither PKIX DER nor a raw 32-byte key")
}
