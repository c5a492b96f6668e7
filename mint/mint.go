// Package mint is the operation-level state machine: issue, verify,
// redeem, split and remint. It is the only stateful coordinator in the
// system and owns every transaction boundary; the stores it wraps
// (denom, keystore, ledger) hold no opinions about operation sequencing
// of their own.
//
// Grounded on the subscriber/database wrapper shape of
// extensions/minting's TransactionDB: a single struct holding the
// persistence handles it orchestrates, exposing one method per
// high-level operation rather than per storage primitive.
package mint

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chaumint/mintd/changemaker"
	"github.com/chaumint/mintd/crypto/blind"
	"github.com/chaumint/mintd/crypto/rsakey"
	"github.com/chaumint/mintd/persist"
	"github.com/chaumint/mintd/store/denom"
	"github.com/chaumint/mintd/store/keystore"
	"github.com/chaumint/mintd/store/ledger"
	"github.com/chaumint/mintd/types"
)

// DefaultCurrency is the only currency tag the ladder is bootstrapped
// under: power-of-two "SATS" denominations from 2^0 through 2^20.
const DefaultCurrency = "SATS"

// LadderTopExponent is the highest power of two in the bootstrap ladder.
const LadderTopExponent = 20

// AlertFunc is invoked on an invariant violation (an issue self-check
// failure, or a missing key for an active denomination that rotation
// should have prevented). Operators wire this to whatever paging system
// they run; a nil AlertFunc just means the failure is logged and nothing
// else.
type AlertFunc func(err error, context string)

// Controller orchestrates the mint's operations over its three stores.
type Controller struct {
	Denoms *denom.Store
	Keys   *keystore.Store
	Ledger *ledger.Store

	rsaBits          int
	rotationInterval time.Duration
	alert            AlertFunc
	log              *logrus.Entry
}

// Config bundles the controller's tunables.
type Config struct {
	// RSABits is the modulus size new signing keys are generated with.
	// Must be at least types.MinModulusBits.
	RSABits int
	// RotationInterval is how long a freshly synthesized key is valid
	// for before the rotation scheduler supersedes it.
	RotationInterval time.Duration
	// Alert is called on invariant violations. May be nil.
	Alert AlertFunc
}

// New builds a Controller over the given stores.
func New(denoms *denom.Store, keys *keystore.Store, ldg *ledger.Store, cfg Config) *Controller {
	if cfg.RSABits < types.MinModulusBits {
		cfg.RSABits = types.MinModulusBits
	}
	return &Controller{
		Denoms:           denoms,
		Keys:             keys,
		Ledger:           ldg,
		rsaBits:          cfg.RSABits,
		rotationInterval: cfg.RotationInterval,
		alert:            cfg.Alert,
		log:              persist.NewLogger("mint"),
	}
}

// Bootstrap seeds the denomination ladder {2^0, ..., 2^20} under
// DefaultCurrency if it does not already exist. Idempotent: safe to call
// on every process start.
func (c *Controller) Bootstrap(now time.Time) error {
	for exp := 0; exp <= LadderTopExponent; exp++ {
		value := uint64(1) << uint(exp)
		if _, err := c.Denoms.GetByValue(value, DefaultCurrency); err == nil {
			continue
		} else if err != types.ErrDenominationNotFound {
			return err
		}
		d := types.Denomination{
			ID:          uuid.NewString(),
			Value:       value,
			Currency:    DefaultCurrency,
			Description: fmt.Sprintf("%d %s", value, DefaultCurrency),
			Active:      true,
			CreatedAt:   now,
		}
		if err := c.Denoms.Create(d); err != nil {
			return err
		}
	}
	return nil
}

// ListDenominations returns the ladder, ascending by value.
func (c *Controller) ListDenominations() ([]types.Denomination, error) {
	return c.Denoms.ListActive(DefaultCurrency)
}

// resolveDenomination turns a Selector into a concrete, active
// Denomination.
func (c *Controller) resolveDenomination(sel types.Selector) (types.Denomination, error) {
	switch sel.Kind {
	case types.SelectorByID:
		return c.Denoms.Get(sel.DenominationID)
	case types.SelectorByValue:
		return c.Denoms.GetByValue(sel.Value, sel.Currency)
	default:
		return c.Denoms.Smallest(DefaultCurrency)
	}
}

// activeKeyFor returns the active signing key for a denomination,
// synthesizing one if none exists yet. Synthesis is serialized per
// denomination so two concurrent callers observe the same new key.
func (c *Controller) activeKeyFor(d types.Denomination, now time.Time) (types.SigningKey, error) {
	lock := c.Keys.RotationLock(d.ID)
	lock.Lock()
	defer lock.Unlock()

	k, err := c.Keys.Active(d.ID, now)
	if err == nil {
		return k, nil
	}
	if err != types.ErrMissingKeyForActiveDenomination {
		return types.SigningKey{}, err
	}

	newKey, genErr := rsakey.Generate(d.ID, c.rsaBits, c.rotationInterval, now)
	if genErr != nil {
		return types.SigningKey{}, genErr
	}
	if saveErr := c.Keys.Save(newKey); saveErr != nil {
		return types.SigningKey{}, saveErr
	}
	c.log.WithFields(logrus.Fields{"denomination_id": d.ID, "key_id": newKey.ID}).
		Info("synthesized signing key for denomination with none active")
	return newKey, nil
}

// hashForModulus picks SHA-256 unless the digest would overflow the
// modulus, in which case it falls back to SHA-1. Every key this module
// generates is at least types.MinModulusBits bits, so the SHA-1 branch
// is a compatibility concession that real traffic never exercises.
func hashForModulus(data []byte, n *big.Int) ([]byte, types.HashAlg) {
	h := sha256.Sum256(data)
	if new(big.Int).SetBytes(h[:]).Cmp(n) < 0 {
		return h[:], types.HashSHA256
	}
	h1 := sha1.Sum(data)
	return h1[:], types.HashSHA1
}

// issueOne runs the full single-denomination issue pipeline and returns
// the resulting token. It bumps the mint counter (and batch counter, if
// batchID is non-empty) best-effort: a counter failure is logged but
// never fails the issue.
func (c *Controller) issueOne(d types.Denomination, batchID string, now time.Time) (types.Token, error) {
	key, err := c.activeKeyFor(d, now)
	if err != nil {
		return types.Token{}, err
	}
	pub := rsakey.PublicKey(key)
	priv := rsakey.PrivateKey(key)

	id := uuid.NewString()
	data := types.CanonicalData(id)
	hash, _ := hashForModulus(data, pub.N)

	blinded, r, err := blind.Blind(hash, pub)
	if err != nil {
		return types.Token{}, err
	}
	blindSig, err := blind.SignBlinded(blinded, priv)
	if err != nil {
		return types.Token{}, err
	}
	sig, err := blind.Unblind(blindSig, r, pub)
	if err != nil {
		return types.Token{}, err
	}

	if !blind.Verify(hash, sig, pub) {
		c.log.WithFields(logrus.Fields{"denomination_id": d.ID, "key_id": key.ID}).
			Log(logrus.FatalLevel, "issue self-check failed")
		if c.alert != nil {
			c.alert(types.ErrIssueSelfCheckFailed, fmt.Sprintf("denomination=%s key=%s", d.ID, key.ID))
		}
		return types.Token{}, types.ErrIssueSelfCheckFailed
	}

	if err := c.Ledger.BumpMinted(d.ID, 1, now); err != nil {
		c.log.WithError(err).Warn("failed to bump mint counter")
	}
	if batchID != "" {
		if err := c.Ledger.BumpBatch(batchID, d.Currency, d.Value, 0, now); err != nil {
			c.log.WithError(err).Warn("failed to bump batch counter")
		}
	}

	return types.Token{Data: data, Signature: sig, KeyID: key.ID}, nil
}

// Issue resolves sel to a denomination and issues a single token.
func (c *Controller) Issue(sel types.Selector, batchID string, now time.Time) (types.Token, error) {
	d, err := c.resolveDenomination(sel)
	if err != nil {
		if err == types.ErrDenominationNotFound {
			return types.Token{}, types.ErrNoActiveDenomination
		}
		return types.Token{}, err
	}
	return c.issueOne(d, batchID, now)
}

// Summary describes the denomination mix an IssueTotal call produced.
type Summary struct {
	DenominationValues []uint64
	TotalValue         uint64
}

// IssueTotal decomposes totalAmount via the change maker and issues one
// token per denomination in the decomposition. If any single issue
// fails, none of the tokens are returned — the caller sees the whole
// batch fail rather than a partial one. (Mint-side counters already
// bumped for an earlier denomination in the loop are not rolled back;
// per the best-effort counter policy they are allowed to drift rather
// than block the operation on a corrective transaction.)
func (c *Controller) IssueTotal(totalAmount uint64, currency, batchID string, now time.Time) ([]types.Token, Summary, error) {
	active, err := c.Denoms.ListActive(currency)
	if err != nil {
		return nil, Summary{}, err
	}
	decomposition, err := changemaker.Decompose(totalAmount, active)
	if err != nil {
		return nil, Summary{}, err
	}

	tokens := make([]types.Token, 0, len(decomposition))
	summary := Summary{}
	for _, d := range decomposition {
		tok, err := c.issueOne(d, batchID, now)
		if err != nil {
			return nil, Summary{}, err
		}
		tokens = append(tokens, tok)
		summary.DenominationValues = append(summary.DenominationValues, d.Value)
		summary.TotalValue += d.Value
	}
	return tokens, summary, nil
}

// VerifyResult is the outcome of a Verify call.
type VerifyResult struct {
	Valid        bool
	TokenID      types.TokenID
	Denomination types.Denomination
	AlreadySpent bool
	SpentAt      time.Time
}

// verifyToken runs the shared first five verify steps: parse, resolve
// key and denomination, recompute the hash, and check the signature. It
// never touches the ledger.
func (c *Controller) verifyToken(tok types.Token) (types.TokenID, types.SigningKey, types.Denomination, error) {
	id, err := types.ParseCanonicalData(tok.Data)
	if err != nil || id == "" {
		return "", types.SigningKey{}, types.Denomination{}, types.ErrBadFormat
	}

	key, err := c.Keys.Get(tok.KeyID)
	if err != nil {
		return "", types.SigningKey{}, types.Denomination{}, types.ErrUnknownKey
	}

	d, err := c.Denoms.Get(key.DenominationID)
	if err != nil {
		return "", types.SigningKey{}, types.Denomination{}, types.ErrDenominationNotFound
	}

	pub := rsakey.PublicKey(key)
	hash, _ := hashForModulus(tok.Data, pub.N)
	if !blind.Verify(hash, tok.Signature, pub) {
		return "", types.SigningKey{}, types.Denomination{}, types.ErrBadSignature
	}

	return id, key, d, nil
}

// Verify checks a token's signature and spend status without mutating
// any state.
func (c *Controller) Verify(tok types.Token) (VerifyResult, error) {
	id, _, d, err := c.verifyToken(tok)
	if err != nil {
		return VerifyResult{}, err
	}

	rec, spent, err := c.Ledger.SpentRecordFor(id)
	if err != nil {
		return VerifyResult{}, err
	}
	if spent {
		return VerifyResult{TokenID: id, Denomination: d, AlreadySpent: true, SpentAt: rec.RedeemedAt}, nil
	}
	return VerifyResult{Valid: true, TokenID: id, Denomination: d}, nil
}

// RedeemResult is the outcome of a successful Redeem call.
type RedeemResult struct {
	TokenID      types.TokenID
	Denomination types.Denomination
	RedeemedAt   time.Time
}

// Redeem verifies a token and, if unspent, marks it spent. The
// check-and-mark step is atomic in the ledger; this method never races
// itself across concurrent callers for the same token id.
func (c *Controller) Redeem(tok types.Token, now time.Time) (RedeemResult, error) {
	id, key, d, err := c.verifyToken(tok)
	if err != nil {
		return RedeemResult{}, err
	}

	rec := types.SpentRecord{TokenID: id, DenominationID: d.ID, KeyID: key.ID, RedeemedAt: now}
	if err := c.Ledger.CheckAndMark(rec); err != nil {
		return RedeemResult{}, err
	}

	if err := c.Ledger.BumpRedeemed(d.ID, 1, now); err != nil {
		c.log.WithError(err).Warn("failed to bump redeem counter")
	}

	return RedeemResult{TokenID: id, Denomination: d, RedeemedAt: now}, nil
}

// SplitResult is the outcome of a successful Split (or Remint) call.
type SplitResult struct {
	ConsumedTokenID types.TokenID
	ChangeTokens    []types.Token
	ChangeValue     uint64
}

// Split verifies and consumes an input token, issuing change tokens
// totaling denom.Value - redeemValue. redeemValue must be strictly less
// than the input denomination's value. If any change issue fails, the
// input token is not marked spent — the whole operation rolls back.
func (c *Controller) Split(tok types.Token, redeemValue uint64, now time.Time) (SplitResult, error) {
	id, key, d, err := c.verifyToken(tok)
	if err != nil {
		return SplitResult{}, err
	}
	if redeemValue >= d.Value {
		return SplitResult{}, types.ErrRedeemValueNotLessThanDenom
	}
	change := d.Value - redeemValue

	active, err := c.Denoms.ListActive(d.Currency)
	if err != nil {
		return SplitResult{}, err
	}
	decomposition, err := changemaker.Decompose(change, active)
	if err != nil {
		return SplitResult{}, err
	}

	// Issue every change token before touching the ledger: issuing has no
	// durable side effect beyond best-effort counters, so if any change
	// issue fails here the input token has not been marked spent and the
	// whole split is a no-op, per §4.6's atomicity requirement.
	changeTokens := make([]types.Token, 0, len(decomposition))
	outputKeyIDs := make([]string, 0, len(decomposition))
	for _, cd := range decomposition {
		ct, err := c.issueOne(cd, "", now)
		if err != nil {
			return SplitResult{}, err
		}
		changeTokens = append(changeTokens, ct)
		outputKeyIDs = append(outputKeyIDs, ct.KeyID)
	}

	rec := types.SpentRecord{TokenID: id, DenominationID: d.ID, KeyID: key.ID, RedeemedAt: now}
	if err := c.Ledger.CheckAndMark(rec); err != nil {
		return SplitResult{}, err
	}

	if err := c.Ledger.BumpRedeemed(d.ID, 1, now); err != nil {
		c.log.WithError(err).Warn("failed to bump redeem counter")
	}
	if err := c.Ledger.RecordAudit(types.AuditRecord{
		InputTokenID: id,
		OutputKeyIDs: outputKeyIDs,
		RedeemValue:  redeemValue,
		ChangeValue:  change,
		RecordedAt:   now,
	}); err != nil {
		c.log.WithError(err).Warn("failed to record split audit row")
	}

	return SplitResult{ConsumedTokenID: id, ChangeTokens: changeTokens, ChangeValue: change}, nil
}

// Remint is a Split with redeemValue = 0: the entire denomination value
// comes back as change, which decomposes to exactly one token of the
// same denomination since the ladder is dense down to 1 and the input's
// own value is itself a ladder entry. Used by clients to rotate their
// holdings across a key-rotation boundary.
func (c *Controller) Remint(tok types.Token, now time.Time) (types.Token, error) {
	result, err := c.Split(tok, 0, now)
	if err != nil {
		return types.Token{}, err
	}
	return result.ChangeTokens[0], nil
}

// OutstandingValue reports the minted/redeemed/outstanding totals for a
// batch (if batchID is non-empty) or, for the whole currency, the sum
// across all active denominations' counters.
func (c *Controller) OutstandingValue(batchID, currency string) (total, redeemed, outstanding uint64, err error) {
	if batchID != "" {
		bc, err := c.Ledger.BatchCounterFor(batchID)
		if err != nil {
			return 0, 0, 0, err
		}
		return bc.TotalValue, bc.RedeemedValue, bc.TotalValue - bc.RedeemedValue, nil
	}

	active, err := c.Denoms.ListActive(currency)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, d := range active {
		dc, err := c.Ledger.DenomCounter(d.ID)
		if err != nil {
			return 0, 0, 0, err
		}
		total += dc.MintedCount * d.Value
		redeemed += dc.RedeemedCount * d.Value
	}
	return total, redeemed, total - redeemed, nil
}

// DenominationOutstanding is one row of OutstandingByDenomination's
// result.
type DenominationOutstanding struct {
	Denomination  types.Denomination
	MintedCount   uint64
	RedeemedCount uint64
}

// OutstandingByDenomination reports per-denomination mint/redeem counts
// for a currency.
func (c *Controller) OutstandingByDenomination(currency string) ([]DenominationOutstanding, error) {
	active, err := c.Denoms.ListActive(currency)
	if err != nil {
		return nil, err
	}
	out := make([]DenominationOutstanding, 0, len(active))
	for _, d := range active {
		dc, err := c.Ledger.DenomCounter(d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, DenominationOutstanding{
			Denomination:  d,
			MintedCount:   dc.MintedCount,
			RedeemedCount: dc.RedeemedCount,
		})
	}
	return out, nil
}
