package rpc

import (
	"bytes"
	"encoding/json"

	"promptpilot/trustd/internal/trusterr"
)

func (s *Server) dispatch(method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil

	case "admin.nonce":
		nonce, err := s.service.IssueAdminNonce()
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]string{"nonce": nonce}, nil

	case "admin.unlock":
		var p struct {
			Signature string `json:"signature"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.Signature == "" {
			return nil, rpcInvalidParams()
		}
		ok, err := s.service.VerifyAdmin(p.Signature)
		if err != nil {
			verifyOutcomes.WithLabelValues("admin", "rejected").Inc()
			return nil, s.fail(method, err)
		}
		verifyOutcomes.WithLabelValues("admin", "verified").Inc()
		return map[string]bool{"unlocked": ok}, nil

	case "admin.status":
		return map[string]bool{"unlocked": s.service.AdminStatus()}, nil

	case "consent.request":
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.UserID == "" {
			return nil, rpcInvalidParams()
		}
		challenge, err := s.service.RequestConsent(p.UserID)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return challenge, nil

	case "consent.verify":
		var p struct {
			UserID    string `json:"user_id"`
			Nonce     string `json:"nonce"`
			Signature string `json:"signature"`
			PublicKey string `json:"public_key"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.UserID == "" || p.Nonce == "" {
			return nil, rpcInvalidParams()
		}
		ok, err := s.service.VerifyConsent(p.UserID, p.Nonce, p.Signature, p.PublicKey)
		if err != nil {
			verifyOutcomes.WithLabelValues("consent", "rejected").Inc()
			return nil, s.fail(method, err)
		}
		verifyOutcomes.WithLabelValues("consent", "verified").Inc()
		return map[string]bool{"authorized": ok}, nil

	case "identity.create":
		var p struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
			Passphrase  string `json:"passphrase"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.UserID == "" {
			return nil, rpcInvalidParams()
		}
		profile, mnemonic, err := s.service.CreateIdentity(p.UserID, p.DisplayName, p.Passphrase)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]any{"profile": profile, "mnemonic": mnemonic}, nil

	case "identity.recover":
		var p struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
			Mnemonic    string `json:"mnemonic"`
			Passphrase  string `json:"passphrase"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.UserID == "" || p.Mnemonic == "" {
			return nil, rpcInvalidParams()
		}
		profile, err := s.service.RecoverIdentity(p.UserID, p.DisplayName, p.Mnemonic, p.Passphrase)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return profile, nil

	case "identity.list":
		profiles, err := s.service.ListIdentities()
		if err != nil {
			return nil, s.fail(method, err)
		}
		return profiles, nil

	case "identity.unlock":
		var p struct {
			UserID     string `json:"user_id"`
			Passphrase string `json:"passphrase"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.UserID == "" {
			return nil, rpcInvalidParams()
		}
		ok, err := s.service.UnlockIdentity(p.UserID, p.Passphrase)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]bool{"unlocked": ok}, nil

	case "identity.publicKey":
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.UserID == "" {
			return nil, rpcInvalidParams()
		}
		key, err := s.service.GetPublicKey(p.UserID)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]string{"public_key": key}, nil

	case "audit.append":
		var p struct {
			Event string `json:"event"`
		}
		if err := decodeParams(rawParams, &p); err != nil {
			return nil, rpcInvalidParams()
		}
		hash, err := s.service.AppendAuditEvent(p.Event)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]string{"hash": hash}, nil

	case "audit.head":
		head, err := s.service.AuditHead()
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]string{"head": head}, nil

	case "audit.recent":
		var p struct {
			Limit int `json:"limit"`
		}
		if err := decodeParams(rawParams, &p); err != nil {
			return nil, rpcInvalidParams()
		}
		entries, err := s.service.RecentAuditEntries(p.Limit)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return entries, nil

	case "audit.verify":
		valid, badID, err := s.service.VerifyAuditChain()
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]any{"valid": valid, "bad_id": badID}, nil

	case "policy.check":
		var p struct {
			Capability string `json:"capability"`
		}
		if err := decodeParams(rawParams, &p); err != nil || p.Capability == "" {
			return nil, rpcInvalidParams()
		}
		allowed, err := s.service.CheckCapability(p.Capability)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return map[string]bool{"allowed": allowed}, nil
	}

	return nil, &rpcError{Code: -32601, Message: "method not found"}
}

func (s *Server) fail(method string, err error) *rpcError {
	rpcFailures.WithLabelValues(method, trusterr.KindOf(err)).Inc()
	return mapServiceError(err)
}

// decodeParams tolerates absent params for methods whose arguments are
// all optional, but rejects unknown fields so typos fail loudly.
func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
