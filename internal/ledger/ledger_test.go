package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "admin_logs.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestEmptyLedgerHeadIsGenesis(t *testing.T) {
	l := openTestLedger(t)
	head, err := l.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != Genesis {
		t.Fatalf("expected %q, got %q", Genesis, head)
	}
}

func TestFirstEntryLinksToGenesis(t *testing.T) {
	l := openTestLedger(t)
	curr, err := l.Append("admin.nonce_issued")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	sum := sha256.Sum256([]byte(Genesis + "admin.nonce_issued"))
	if curr != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected head hash %s", curr)
	}
	entries, err := l.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].HashPrev != Genesis {
		t.Fatalf("first entry must link to genesis: %+v", entries)
	}
}

func TestAppendExtendsChain(t *testing.T) {
	l := openTestLedger(t)
	var prevHead string
	for i := 0; i < 5; i++ {
		head, err := l.Append(fmt.Sprintf("event-%d", i))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if head == prevHead {
			t.Fatalf("head did not advance at %d", i)
		}
		prevHead = head
	}
	head, err := l.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != prevHead {
		t.Fatalf("Head disagrees with last Append: %s vs %s", head, prevHead)
	}
	valid, badID, err := l.VerifyChain()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Fatalf("chain reported invalid at id %d", badID)
	}
}

func TestRecentNewestFirstAndClamped(t *testing.T) {
	l := openTestLedger(t)
	for i := 0; i < 120; i++ {
		if _, err := l.Append(fmt.Sprintf("event-%d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	entries, err := l.Recent(1000)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != MaxRecentLimit {
		t.Fatalf("expected clamp to %d, got %d", MaxRecentLimit, len(entries))
	}
	if entries[0].Event != "event-119" {
		t.Fatalf("expected newest first, got %s", entries[0].Event)
	}
	if entries[0].ID <= entries[1].ID {
		t.Fatal("ids must be strictly descending")
	}

	two, err := l.Recent(2)
	if err != nil {
		t.Fatalf("recent(2): %v", err)
	}
	if len(two) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(two))
	}
}

func TestVerifyChainDetectsTamperedEvent(t *testing.T) {
	l := openTestLedger(t)
	for i := 0; i < 4; i++ {
		if _, err := l.Append(fmt.Sprintf("event-%d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := l.db.Exec("UPDATE logs SET event = 'forged' WHERE id = 2"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	valid, badID, err := l.VerifyChain()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if valid {
		t.Fatal("tampered chain reported valid")
	}
	if badID != 2 {
		t.Fatalf("expected corruption at id 2, got %d", badID)
	}
}

func TestVerifyChainDetectsRelinkedPrev(t *testing.T) {
	l := openTestLedger(t)
	for i := 0; i < 3; i++ {
		if _, err := l.Append(fmt.Sprintf("event-%d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := l.db.Exec("UPDATE logs SET hash_prev = ? WHERE id = 3", Genesis); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	valid, badID, err := l.VerifyChain()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if valid || badID != 3 {
		t.Fatalf("expected corruption at id 3, got valid=%v id=%d", valid, badID)
	}
}

func TestConcurrentAppendsKeepChainIntact(t *testing.T) {
	l := openTestLedger(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := l.Append(fmt.Sprintf("worker-%d-event-%d", n, j)); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	valid, badID, err := l.VerifyChain()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Fatalf("concurrent appends broke the chain at id %d", badID)
	}
	entries, err := l.Recent(MaxRecentLimit)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 80 {
		t.Fatalf("expected 80 entries, got %d", len(entries))
	}
}
