package rotation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chaumint/mintd/store/denom"
	"github.com/chaumint/mintd/store/keystore"
	"github.com/chaumint/mintd/types"
)

func newTestScheduler(t *testing.T) (*Scheduler, *denom.Store, *keystore.Store) {
	t.Helper()
	dir := t.TempDir()
	denoms, err := denom.Open(filepath.Join(dir, "denom.db"))
	if err != nil {
		t.Fatal(err)
	}
	keys, err := keystore.Open(filepath.Join(dir, "keystore.db"), 64, 365*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		denoms.Close()
		keys.Close()
	})
	s := New(denoms, keys, types.MinModulusBits, 24*time.Hour, "SATS")
	return s, denoms, keys
}

func TestRotateSynthesizesMissingKey(t *testing.T) {
	s, denoms, keys := newTestScheduler(t)
	now := time.Now()
	d := types.Denomination{ID: uuid.NewString(), Value: 8, Currency: "SATS", Active: true, CreatedAt: now}
	if err := denoms.Create(d); err != nil {
		t.Fatal(err)
	}

	if err := s.Rotate(now); err != nil {
		t.Fatal(err)
	}
	k, err := keys.Active(d.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if k.DenominationID != d.ID {
		t.Fatalf("got key for denomination %q, want %q", k.DenominationID, d.ID)
	}
}

func TestRotateReplacesKeyInFinalLifetimeFraction(t *testing.T) {
	s, denoms, keys := newTestScheduler(t)
	now := time.Now()
	d := types.Denomination{ID: uuid.NewString(), Value: 8, Currency: "SATS", Active: true, CreatedAt: now}
	if err := denoms.Create(d); err != nil {
		t.Fatal(err)
	}

	aging := types.SigningKey{
		ID:             uuid.NewString(),
		DenominationID: d.ID,
		N:              []byte{1, 2, 3},
		E:              65537,
		D:              []byte{4, 5, 6},
		CreatedAt:      now.Add(-23 * time.Hour),
		ExpiresAt:      now.Add(1 * time.Hour), // 24h lifetime, 1h (~4%) remaining
		Active:         true,
	}
	if err := keys.Save(aging); err != nil {
		t.Fatal(err)
	}

	if err := s.Rotate(now); err != nil {
		t.Fatal(err)
	}

	active, err := keys.Active(d.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if active.ID == aging.ID {
		t.Fatal("expected the aging key to be superseded")
	}

	old, err := keys.Get(aging.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Active {
		t.Fatal("expected superseded key to be deactivated, not deleted")
	}
}

func TestRotateLeavesFreshKeyAlone(t *testing.T) {
	s, denoms, keys := newTestScheduler(t)
	now := time.Now()
	d := types.Denomination{ID: uuid.NewString(), Value: 8, Currency: "SATS", Active: true, CreatedAt: now}
	if err := denoms.Create(d); err != nil {
		t.Fatal(err)
	}

	fresh := types.SigningKey{
		ID:             uuid.NewString(),
		DenominationID: d.ID,
		N:              []byte{1, 2, 3},
		E:              65537,
		D:              []byte{4, 5, 6},
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		Active:         true,
	}
	if err := keys.Save(fresh); err != nil {
		t.Fatal(err)
	}

	if err := s.Rotate(now); err != nil {
		t.Fatal(err)
	}

	active, err := keys.Active(d.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if active.ID != fresh.ID {
		t.Fatal("expected a fresh key to survive rotation untouched")
	}
}
