// Package directory is the durable mapping of user_id to display name and
// verifying key, backed by a SQLite table in WAL mode.
package directory

import (
	"crypto/ed25519"
	"database/sql"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"promptpilot/trustd/internal/trusterr"
	"promptpilot/trustd/pkg/models"
)

var ErrNotFound = errors.New("identity not found")

const schema = `
CREATE TABLE IF NOT EXISTS profiles(
	user_id      TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	pubkey       BLOB NOT NULL
);`

type Directory struct {
	db *sql.DB
}

// Open creates or opens the profiles database at path. The parent
// directory is created if missing.
func Open(path string) (*Directory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	return &Directory{db: db}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

// Put records an identity, replacing any previous row for the same
// user_id. Re-creation overwrites; identities are never mutated in place.
func (d *Directory) Put(userID, displayName string, pub ed25519.PublicKey) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO profiles(user_id, display_name, pubkey) VALUES(?, ?, ?)",
		userID, displayName, []byte(pub),
	)
	if err != nil {
		return trusterr.Wrap(trusterr.KindStorage, err)
	}
	return nil
}

// PublicKey returns the verifying key on file for userID.
func (d *Directory) PublicKey(userID string) (ed25519.PublicKey, error) {
	var raw []byte
	err := d.db.QueryRow("SELECT pubkey FROM profiles WHERE user_id = ?", userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trusterr.Wrap(trusterr.KindStorage, ErrNotFound)
	}
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, trusterr.New(trusterr.KindFormat, "stored public key has wrong size")
	}
	return ed25519.PublicKey(raw), nil
}

// List returns all identities, most recently created first.
func (d *Directory) List() ([]models.Profile, error) {
	rows, err := d.db.Query("SELECT user_id, display_name, pubkey FROM profiles ORDER BY rowid DESC")
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var userID, displayName string
		var raw []byte
		if err := rows.Scan(&userID, &displayName, &raw); err != nil {
			return nil, trusterr.Wrap(trusterr.KindStorage, err)
		}
		profiles = append(profiles, models.Profile{
			UserID:      userID,
			DisplayName: displayName,
			PublicKey:   encodeKey(raw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	return profiles, nil
}

func encodeKey(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
