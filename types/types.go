// Package types defines the core data model of the mint: denominations,
// signing keys, the ephemeral token request, the bearer token itself, and
// the spent-token ledger record. Cross references between these are plain
// identifiers, resolved through the owning store at use time, never
// pointers — a denomination never points at its keys, and a token never
// points at the key that signed it.
package types

import (
	"encoding/json"
	"math/big"
	"time"
)

// Denomination is a fixed, immutable-after-creation value tier. A token
// carries no explicit amount; its value is inferred from the key that
// signed it, which in turn belongs to exactly one Denomination.
type Denomination struct {
	ID          string `json:"id" storm:"id"`
	Value       uint64 `json:"value" storm:"index"`
	Currency    string `json:"currency" storm:"index"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// SigningKey is one RSA keypair issuing tokens for a single denomination
// over its lifetime. A denomination has many keys over time (one-to-many).
// Private material (N, E, D) never leaves the key store's persistence
// boundary in cleartext form beyond what blind-signing requires.
type SigningKey struct {
	ID             string    `json:"id" storm:"id"`
	DenominationID string    `json:"denomination_id" storm:"index"`
	N              []byte    `json:"n"` // RSA modulus, big-endian
	E              int       `json:"e"` // RSA public exponent
	D              []byte    `json:"d"` // RSA private exponent, big-endian
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at" storm:"index"`
	Active         bool      `json:"active"`
}

// MinModulusBits is the minimum acceptable RSA modulus size for a
// SigningKey, per the data-model invariant in spec §3.
const MinModulusBits = 3072

// PublicKey returns the (N, E) pair as big.Int, the form the blind-signature
// engine operates on.
func (k SigningKey) PublicKey() (n *big.Int, e int) {
	return new(big.Int).SetBytes(k.N), k.E
}

// PrivateExponent returns D as a big.Int.
func (k SigningKey) PrivateExponent() *big.Int {
	return new(big.Int).SetBytes(k.D)
}

// ModulusBitLen returns the bit length of the modulus N.
func (k SigningKey) ModulusBitLen() int {
	return new(big.Int).SetBytes(k.N).BitLen()
}

// Expired reports whether the key's expiry has passed as of now.
func (k SigningKey) Expired(now time.Time) bool {
	return !k.ExpiresAt.After(now)
}

// HashAlg names the hash function used to derive a TokenRequest's message
// from its canonical data payload.
type HashAlg string

const (
	// HashSHA256 is used whenever the modulus is large enough to accept a
	// 32-byte integer. Every key in this module is ≥3072 bits, so this is
	// the only branch ever taken in practice.
	HashSHA256 HashAlg = "sha256"
	// HashSHA1 is a compatibility fallback for moduli too small to accept
	// a SHA-256 digest as an integer.
	HashSHA1 HashAlg = "sha1"
)

// TokenID is a 128-bit token identifier, formatted as a UUID string.
type TokenID = string

// TokenRequest is the ephemeral, client-side state of a single issue
// round-trip. The mint never persists it.
type TokenRequest struct {
	ID              TokenID
	Secret          []byte
	Data            []byte // canonical serialization of {"id": ID}
	BlindingFactor  *big.Int
	DenominationID  string
	HashAlg         HashAlg
}

// tokenData is the canonical on-the-wire shape of a Token's Data field.
type tokenData struct {
	ID string `json:"id"`
}

// CanonicalData returns the canonical JSON payload `{"id": "<uuid>"}` for a
// given token id. This is the only content a token's data field ever
// carries — no amount, currency, batch, or creation time.
func CanonicalData(id TokenID) []byte {
	b, err := json.Marshal(tokenData{ID: id})
	if err != nil {
		// tokenData is a plain string field; Marshal cannot fail.
		panic(err)
	}
	return b
}

// ParseCanonicalData extracts the token id from a canonical data payload.
func ParseCanonicalData(data []byte) (TokenID, error) {
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return td.ID, nil
}

// Token is the bearer artifact a client holds after a successful issue (and
// after unblinding). The mint computes its value solely by resolving
// KeyID to a Denomination; the struct itself carries no amount.
type Token struct {
	Data      []byte `json:"data"`
	Signature []byte `json:"signature"`
	KeyID     string `json:"key_id"`
}

// SpentRecord is the ledger's append-only core: durable evidence that a
// token has been redeemed. A token id appears at most once.
type SpentRecord struct {
	TokenID        TokenID   `json:"token_id" storm:"id"`
	DenominationID string    `json:"denomination_id"`
	KeyID          string    `json:"key_id"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}

// DenominationCounter is the per-denomination aggregate: minted and
// redeemed counts. Approximate; eventually consistent with SpentRecord
// insertions but never required to be crash-atomic with them.
type DenominationCounter struct {
	DenominationID string    `json:"denomination_id" storm:"id"`
	MintedCount    uint64    `json:"minted_count"`
	RedeemedCount  uint64    `json:"redeemed_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

// BatchCounter is the per-batch aggregate.
type BatchCounter struct {
	BatchID       string    `json:"batch_id" storm:"id"`
	Currency      string    `json:"currency"`
	TotalValue    uint64    `json:"total_value"`
	RedeemedValue uint64    `json:"redeemed_value"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
}

// AuditRecord links a consumed input token to the output tokens a split or
// remint produced from it (spec §4 "record a split-redemption audit row").
type AuditRecord struct {
	InputTokenID    string    `json:"input_token_id" storm:"id"`
	OutputKeyIDs    []string  `json:"output_key_ids"`
	RedeemValue     uint64    `json:"redeem_value"`
	ChangeValue     uint64    `json:"change_value"`
	RecordedAt      time.Time `json:"recorded_at"`
}
