package rpc

import (
	"errors"

	"promptpilot/trustd/internal/directory"
	"promptpilot/trustd/internal/keycustody"
	"promptpilot/trustd/internal/trusterr"
)

// Error codes: -32000 block is reserved for server errors; the trust
// core maps each failure kind to a stable code so the frontend can
// branch without string matching.
const (
	codeConfig     = -32001
	codeCredential = -32002
	codeProtocol   = -32003
	codeAuth       = -32004
	codeStorage    = -32005
	codeFormat     = -32006
	codeNotFound   = -32007
)

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

func mapServiceError(err error) *rpcError {
	if err == nil {
		return nil
	}
	if errors.Is(err, directory.ErrNotFound) || errors.Is(err, keycustody.ErrUnknownIdentity) {
		return &rpcError{Code: codeNotFound, Message: err.Error()}
	}
	code := codeProtocol
	switch trusterr.KindOf(err) {
	case trusterr.KindConfig:
		code = codeConfig
	case trusterr.KindCredential:
		code = codeCredential
	case trusterr.KindAuth:
		code = codeAuth
	case trusterr.KindStorage:
		code = codeStorage
	case trusterr.KindFormat:
		code = codeFormat
	}
	return &rpcError{Code: code, Message: err.Error()}
}
