// Package rsakey generates and marshals the RSA keypairs that back a
// denomination's signing key. Generation goes through crypto/rsa directly;
// marshaling turns N/E/D into the big-endian byte fields types.SigningKey
// persists, the same shape crypto/blind's PublicKey/PrivateKey read back
// out of it.
package rsakey

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chaumint/mintd/crypto/blind"
	"github.com/chaumint/mintd/types"
)

// Generate creates a new signing key for denominationID, valid from now
// until now+ttl, with an RSA modulus of at least types.MinModulusBits
// bits. bits below that floor is rejected rather than silently raised,
// since a caller passing a too-small value is a configuration bug worth
// surfacing.
func Generate(denominationID string, bits int, ttl time.Duration, now time.Time) (types.SigningKey, error) {
	if bits < types.MinModulusBits {
		return types.SigningKey{}, fmt.Errorf("rsakey: modulus size %d below minimum %d", bits, types.MinModulusBits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return types.SigningKey{}, fmt.Errorf("rsakey: generate: %w", err)
	}

	return types.SigningKey{
		ID:             uuid.NewString(),
		DenominationID: denominationID,
		N:              key.N.Bytes(),
		E:              key.E,
		D:              key.D.Bytes(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		Active:         true,
	}, nil
}

// PublicKey extracts the blind.PublicKey a client blinds against.
func PublicKey(k types.SigningKey) blind.PublicKey {
	n, e := k.PublicKey()
	return blind.PublicKey{N: n, E: e}
}

// PrivateKey extracts the blind.PrivateKey a mint signs with.
func PrivateKey(k types.SigningKey) blind.PrivateKey {
	n, _ := k.PublicKey()
	return blind.PrivateKey{N: n, D: k.PrivateExponent()}
}
