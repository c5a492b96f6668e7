package mint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chaumint/mintd/store/denom"
	"github.com/chaumint/mintd/store/keystore"
	"github.com/chaumint/mintd/store/ledger"
	"github.com/chaumint/mintd/types"
)

func newTestController(t *testing.T) (*Controller, time.Time) {
	t.Helper()
	dir := t.TempDir()

	denoms, err := denom.Open(filepath.Join(dir, "denom.db"))
	if err != nil {
		t.Fatal(err)
	}
	keys, err := keystore.Open(filepath.Join(dir, "keystore.db"), 256, 365*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ldg, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		denoms.Close()
		keys.Close()
		ldg.Close()
	})

	c := New(denoms, keys, ldg, Config{
		RSABits:          types.MinModulusBits,
		RotationInterval: 30 * 24 * time.Hour,
	})
	now := time.Now()
	if err := c.Bootstrap(now); err != nil {
		t.Fatal(err)
	}
	return c, now
}

func TestIssueSingleByValue(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(128, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatal("expected freshly issued token to verify as valid")
	}
	if res.Denomination.Value != 128 {
		t.Fatalf("denomination value = %d, want 128", res.Denomination.Value)
	}
}

func TestIssueByTotalAmount(t *testing.T) {
	c, now := newTestController(t)
	tokens, summary, err := c.IssueTotal(1000, DefaultCurrency, "", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 6 {
		t.Fatalf("got %d tokens, want 6", len(tokens))
	}
	want := []uint64{512, 256, 128, 64, 32, 8}
	if len(summary.DenominationValues) != len(want) {
		t.Fatalf("got denominations %v, want %v", summary.DenominationValues, want)
	}
	for i, v := range want {
		if summary.DenominationValues[i] != v {
			t.Fatalf("position %d: got %d, want %d", i, summary.DenominationValues[i], v)
		}
	}
	if summary.TotalValue != 1000 {
		t.Fatalf("summary.TotalValue = %d, want 1000", summary.TotalValue)
	}
}

func TestRedeemThenVerifyIsAlreadySpent(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(64, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	redeemedAt := now.Add(time.Minute)
	rr, err := c.Redeem(tok, redeemedAt)
	if err != nil {
		t.Fatal(err)
	}
	if rr.Denomination.Value != 64 {
		t.Fatalf("redeemed denomination value = %d, want 64", rr.Denomination.Value)
	}

	res, err := c.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadySpent {
		t.Fatal("expected verify after redeem to report already spent")
	}
	if !res.SpentAt.Equal(redeemedAt) {
		t.Fatalf("SpentAt = %v, want %v", res.SpentAt, redeemedAt)
	}
}

func TestDoubleRedeemIsRefused(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(16, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Redeem(tok, now); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Redeem(tok, now); err != types.ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent on second redeem, got %v", err)
	}
}

func TestSplitWithChange(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(32, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}

	result, err := c.Split(tok, 5, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.ChangeValue != 27 {
		t.Fatalf("ChangeValue = %d, want 27", result.ChangeValue)
	}
	wantValues := map[uint64]bool{16: true, 8: true, 2: true, 1: true}
	if len(result.ChangeTokens) != len(wantValues) {
		t.Fatalf("got %d change tokens, want %d", len(result.ChangeTokens), len(wantValues))
	}
	var total uint64
	for _, ct := range result.ChangeTokens {
		vr, err := c.Verify(ct)
		if err != nil {
			t.Fatal(err)
		}
		if !vr.Valid {
			t.Fatal("expected each change token to verify independently")
		}
		if !wantValues[vr.Denomination.Value] {
			t.Fatalf("unexpected change denomination value %d", vr.Denomination.Value)
		}
		total += vr.Denomination.Value
	}
	if total != 27 {
		t.Fatalf("sum of change values = %d, want 27", total)
	}

	res, err := c.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadySpent {
		t.Fatal("expected the input token to be already spent after split")
	}
}

func TestRemintProducesFreshTokenOfSameDenomination(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(8, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := c.Remint(tok, now)
	if err != nil {
		t.Fatal(err)
	}
	vr, err := c.Verify(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if !vr.Valid || vr.Denomination.Value != 8 {
		t.Fatalf("expected reminted token to verify at value 8, got %+v", vr)
	}

	res, err := c.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadySpent {
		t.Fatal("expected original token to be spent after remint")
	}
}

func TestTamperedSignatureIsRejected(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(4, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	tok.Signature[len(tok.Signature)-1] ^= 0xff

	if _, err := c.Verify(tok); err != types.ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if _, err := c.Redeem(tok, now); err != types.ErrBadSignature {
		t.Fatalf("expected ErrBadSignature on redeem, got %v", err)
	}

	id, perr := types.ParseCanonicalData(tok.Data)
	if perr != nil {
		t.Fatal(perr)
	}
	spent, serr := c.Ledger.IsSpent(id)
	if serr != nil {
		t.Fatal(serr)
	}
	if spent {
		t.Fatal("tampered-signature verify/redeem must not change ledger state")
	}
}

func TestSplitRejectsRedeemValueNotLessThanDenom(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(16, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Split(tok, 16, now); err != types.ErrRedeemValueNotLessThanDenom {
		t.Fatalf("expected ErrRedeemValueNotLessThanDenom, got %v", err)
	}
}

func TestIssueByDefaultSelectorPicksSmallest(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.DefaultSelector(), "", now)
	if err != nil {
		t.Fatal(err)
	}
	vr, err := c.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if vr.Denomination.Value != 1 {
		t.Fatalf("default selector resolved to value %d, want 1", vr.Denomination.Value)
	}
}

func TestOutstandingValueTracksMintAndRedeem(t *testing.T) {
	c, now := newTestController(t)
	tok, err := c.Issue(types.ByValue(64, DefaultCurrency), "", now)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Redeem(tok, now); err != nil {
		t.Fatal(err)
	}

	total, redeemed, outstanding, err := c.OutstandingValue("", DefaultCurrency)
	if err != nil {
		t.Fatal(err)
	}
	if total != 64 || redeemed != 64 || outstanding != 0 {
		t.Fatalf("total=%d redeemed=%d outstanding=%d, want 64/64/0", total, redeemed, outstanding)
	}
}
