package ledger

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chaumint/mintd/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckAndMarkFirstSpendSucceeds(t *testing.T) {
	s := openTestStore(t)
	rec := types.SpentRecord{TokenID: "tok-1", DenominationID: "d1", KeyID: "k1", RedeemedAt: time.Now()}
	if err := s.CheckAndMark(rec); err != nil {
		t.Fatal(err)
	}
	spent, err := s.IsSpent("tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if !spent {
		t.Fatal("expected token to be marked spent")
	}
}

func TestCheckAndMarkRejectsDoubleSpend(t *testing.T) {
	s := openTestStore(t)
	rec := types.SpentRecord{TokenID: "tok-1", DenominationID: "d1", KeyID: "k1", RedeemedAt: time.Now()}
	if err := s.CheckAndMark(rec); err != nil {
		t.Fatal(err)
	}
	if err := s.CheckAndMark(rec); err != types.ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent, got %v", err)
	}
}

func TestCheckAndMarkConcurrentRaceHasExactlyOneWinner(t *testing.T) {
	s := openTestStore(t)
	const attempts = 25

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := types.SpentRecord{TokenID: "shared-token", DenominationID: "d1", KeyID: "k1", RedeemedAt: time.Now()}
			results[i] = s.CheckAndMark(rec)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if err != types.ErrAlreadySpent {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner across %d concurrent attempts, got %d", attempts, successes)
	}
}

func TestCountersAccumulate(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	if err := s.BumpMinted("d1", 5, now); err != nil {
		t.Fatal(err)
	}
	if err := s.BumpMinted("d1", 3, now); err != nil {
		t.Fatal(err)
	}
	if err := s.BumpRedeemed("d1", 2, now); err != nil {
		t.Fatal(err)
	}
	counter, err := s.DenomCounter("d1")
	if err != nil {
		t.Fatal(err)
	}
	if counter.MintedCount != 8 {
		t.Fatalf("MintedCount = %d, want 8", counter.MintedCount)
	}
	if counter.RedeemedCount != 2 {
		t.Fatalf("RedeemedCount = %d, want 2", counter.RedeemedCount)
	}
}

func TestAuditRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := types.AuditRecord{
		InputTokenID: "tok-in",
		OutputKeyIDs: []string{"k-out-1", "k-out-2"},
		RedeemValue:  100,
		ChangeValue:  28,
		RecordedAt:   time.Now(),
	}
	if err := s.RecordAudit(rec); err != nil {
		t.Fatal(err)
	}
	got, found, err := s.AuditFor("tok-in")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected audit record to be found")
	}
	if got.RedeemValue != 100 || got.ChangeValue != 28 {
		t.Fatalf("unexpected audit record: %+v", got)
	}
}
