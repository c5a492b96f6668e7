package mint_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chaumint/mintd/mint"
	"github.com/chaumint/mintd/rotation"
	"github.com/chaumint/mintd/store/denom"
	"github.com/chaumint/mintd/store/keystore"
	"github.com/chaumint/mintd/store/ledger"
	"github.com/chaumint/mintd/types"
)

// TestRemintSurvivesKeyRotation exercises spec scenario 6 and P7: a token
// issued under key K1 must still verify (and remint) once the rotation
// scheduler has superseded K1 with a new active key for the same
// denomination, for as long as K1 remains inside the keystore's
// retention window.
func TestRemintSurvivesKeyRotation(t *testing.T) {
	dir := t.TempDir()
	denoms, err := denom.Open(filepath.Join(dir, "denom.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer denoms.Close()

	rotationInterval := 24 * time.Hour
	keys, err := keystore.Open(filepath.Join(dir, "keystore.db"), 64, 365*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer keys.Close()

	ldg, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ldg.Close()

	controller := mint.New(denoms, keys, ldg, mint.Config{
		RSABits:          types.MinModulusBits,
		RotationInterval: rotationInterval,
	})
	now := time.Now()
	if err := controller.Bootstrap(now); err != nil {
		t.Fatal(err)
	}

	tok, err := controller.Issue(types.ByValue(8, mint.DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	before, err := controller.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	originalKeyID := tok.KeyID

	// Drive the rotation scheduler forward past K1's lifetime so it
	// supersedes K1 with K2 for the same denomination.
	scheduler := rotation.New(denoms, keys, types.MinModulusBits, rotationInterval, mint.DefaultCurrency)
	past := now.Add(rotationInterval + time.Hour)
	if err := scheduler.Rotate(past); err != nil {
		t.Fatal(err)
	}

	afterRotation, err := controller.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !afterRotation.Valid {
		t.Fatal("expected a token signed by a now-superseded key to still verify within the retention window")
	}
	if before.Denomination.Value != afterRotation.Denomination.Value {
		t.Fatal("denomination resolution must not change across rotation")
	}

	// Remint the token: it should be consumed and replaced with a fresh
	// token of the same denomination, signed by whichever key is now
	// active (K1 if still valid, K2 otherwise).
	fresh, err := controller.Remint(tok, past)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.KeyID == originalKeyID {
		t.Fatal("expected the reminted token to be signed by the post-rotation active key, not the superseded one")
	}

	freshResult, err := controller.Verify(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if !freshResult.Valid || freshResult.Denomination.Value != 8 {
		t.Fatalf("expected reminted token to verify at value 8, got %+v", freshResult)
	}

	spentResult, err := controller.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !spentResult.AlreadySpent {
		t.Fatal("expected the original token to be marked spent after remint")
	}
}
