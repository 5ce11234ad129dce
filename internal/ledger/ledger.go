// Package ledger is the append-only, hash-chained record of
// security-relevant events. Each entry's hash commits to the previous
// entry's hash and its own event text.
package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"promptpilot/trustd/internal/trusterr"
	"promptpilot/trustd/pkg/models"
)

// Genesis is the hash_prev of the first entry. It is not a valid hex
// digest, so it can never collide with a real hash value.
const Genesis = "GENESIS"

// MaxRecentLimit bounds the size of a Recent response.
const MaxRecentLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS logs(
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        DATETIME DEFAULT CURRENT_TIMESTAMP,
	event     TEXT NOT NULL,
	hash_prev TEXT NOT NULL,
	hash_curr TEXT NOT NULL
);`

type Ledger struct {
	db *sql.DB
	// Serializes read-head/compute/insert. The transaction alone would
	// surface SQLITE_BUSY to a concurrent appender; the lock makes
	// appends queue instead.
	appendMu sync.Mutex
}

func Open(path string) (*Ledger, error) {
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
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append links event onto the chain and returns the new head hash. The
// head read and the insert happen in one transaction so two interleaved
// appends can never both claim the same predecessor.
func (l *Ledger) Append(event string) (string, error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return "", trusterr.Wrap(trusterr.KindStorage, err)
	}
	defer tx.Rollback()

	prev, err := headHash(tx)
	if err != nil {
		return "", err
	}
	curr := chainHash(prev, event)
	if _, err := tx.Exec(
		"INSERT INTO logs(event, hash_prev, hash_curr) VALUES(?, ?, ?)",
		event, prev, curr,
	); err != nil {
		return "", trusterr.Wrap(trusterr.KindStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return "", trusterr.Wrap(trusterr.KindStorage, err)
	}
	return curr, nil
}

// Head returns the current chain head, or Genesis for an empty ledger.
func (l *Ledger) Head() (string, error) {
	return headHash(l.db)
}

// Recent returns up to limit entries, newest first. The limit is clamped
// to MaxRecentLimit; zero or negative means the maximum.
func (l *Ledger) Recent(limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	rows, err := l.db.Query(
		"SELECT id, COALESCE(ts, ''), event, hash_prev, hash_curr FROM logs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Event, &e.HashPrev, &e.HashCurr); err != nil {
			return nil, trusterr.Wrap(trusterr.KindStorage, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, trusterr.Wrap(trusterr.KindStorage, err)
	}
	return entries, nil
}

// VerifyChain recomputes every link in ascending id order. It returns
// valid=false and the id of the first entry whose stored hashes do not
// match the recomputation; badID is 0 when the chain is intact.
func (l *Ledger) VerifyChain() (valid bool, badID int64, err error) {
	rows, err := l.db.Query("SELECT id, event, hash_prev, hash_curr FROM logs ORDER BY id ASC")
	if err != nil {
		return false, 0, trusterr.Wrap(trusterr.KindStorage, err)
	}
	defer rows.Close()

	prev := Genesis
	for rows.Next() {
		var id int64
		var event, hashPrev, hashCurr string
		if err := rows.Scan(&id, &event, &hashPrev, &hashCurr); err != nil {
			return false, 0, trusterr.Wrap(trusterr.KindStorage, err)
		}
		if hashPrev != prev || hashCurr != chainHash(hashPrev, event) {
			return false, id, nil
		}
		prev = hashCurr
	}
	if err := rows.Err(); err != nil {
		return false, 0, trusterr.Wrap(trusterr.KindStorage, err)
	}
	return true, 0, nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func headHash(q querier) (string, error) {
	var head string
	err := q.QueryRow("SELECT hash_curr FROM logs ORDER BY id DESC LIMIT 1").Scan(&head)
	if errors.Is(err, sql.ErrNoRows) {
		return Genesis, nil
	}
	if err != nil {
		return "", trusterr.Wrap(trusterr.KindStorage, err)
	}
	return head, nil
}

func chainHash(prev, event string) string {
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write([]byte(event))
	return hex.EncodeToString(h.Sum(nil))
}
