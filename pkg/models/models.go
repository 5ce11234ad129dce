package models

// Profile is the public view of a named identity. The private half of the
// keypair never leaves internal/keycustody in decrypted form.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PublicKey   string `json:"public_key"` // base64, 32-byte ed25519 key
}

// AuditEntry is one link of the hash chain. HashCurr commits to HashPrev and
// Event, so any retroactive edit is detectable.
type AuditEntry struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts"`
	Event    string `json:"event"`
	HashPrev string `json:"hash_prev"`
	HashCurr string `json:"hash_curr"`
}

// ConsentChallenge is handed to an admin who relays it to the affected user
// for out-of-band signing.
type ConsentChallenge struct {
	UserID string `json:"user_id"`
	Nonce  string `json:"nonce"`
}
