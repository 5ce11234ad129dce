package trusterr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind partitions every fallible trust-core operation into one recoverable
// failure class. No kind is ever fatal to the process.
const (
	KindConfig     = "config"     // missing or malformed trust anchor
	KindCredential = "credential" // passphrase or key decrypt failure
	KindProtocol   = "protocol"   // no pending challenge, nonce mismatch
	KindAuth       = "auth"       // signature verification failure
	KindStorage    = "storage"    // filesystem or database I/O failure
	KindFormat     = "format"     // malformed base64 or wrong-size key input
)

type KindError struct {
	Kind string
	Err  error
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

func normalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindConfig:
		return KindConfig
	case KindCredential:
		return KindCredential
	case KindAuth:
		return KindAuth
	case KindStorage:
		return KindStorage
	case KindFormat:
		return KindFormat
	default:
		return KindProtocol
	}
}

// Wrap tags err with a failure kind. An already-tagged error keeps its
// original kind so the first classification wins.
func Wrap(kind string, err error) error {
	if err == nil {
		return nil
	}
	var existing *KindError
	if errors.As(err, &existing) {
		return err
	}
	return &KindError{Kind: normalizeKind(kind), Err: err}
}

func New(kind, msg string) error {
	return &KindError{Kind: normalizeKind(kind), Err: errors.New(msg)}
}

func Newf(kind, format string, args ...any) error {
	return &KindError{Kind: normalizeKind(kind), Err: fmt.Errorf(format, args...)}
}

// KindOf reports the failure kind of err, defaulting to protocol for
// untagged errors.
func KindOf(err error) string {
	var tagged *KindError
	if errors.As(err, &tagged) {
		return normalizeKind(tagged.Kind)
	}
	return KindProtocol
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind string) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == normalizeKind(kind)
}
