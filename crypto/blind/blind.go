// Package blind implements the four raw-RSA primitives of a Chaumian
// blind signature: Blind, SignBlinded, Unblind and Verify. There is no
// padding scheme here — the message is signed as a bare big-endian
// integer, never through crypto/rsa's PKCS1v15 or PSS paths, since those
// schemes are deterministic in a way that defeats blinding.
//
// Grounded on the RSA blinding arithmetic in decrypt() from
// crypto/rsa (mirrored in the bastionzero-keysplitting mpcrsa package):
// c*r^e mod n to blind, then multiplying the result by the modular
// inverse of r to unblind.
package blind

import (
	"crypto/rand"
	"math/big"

	"github.com/chaumint/mintd/types"
)

var bigOne = big.NewInt(1)

// PublicKey is the (N, E) pair a client blinds against and a verifier
// checks a signature against.
type PublicKey struct {
	N *big.Int
	E int
}

// PrivateKey is the (N, D) pair a mint signs with. It carries no public
// exponent; SignBlinded needs only N and D.
type PrivateKey struct {
	N *big.Int
	D *big.Int
}

func byteLen(n *big.Int) int {
	return (n.BitLen() + 7) / 8
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// Blind converts messageBytes into an integer m and returns r^e*m mod n
// along with the blinding factor r, sampled uniformly from (1, n) subject
// to gcd(r, n) = 1. The caller must hold on to r for the matching Unblind
// call; the mint never sees it.
func Blind(messageBytes []byte, pub PublicKey) (blindedBytes []byte, r *big.Int, err error) {
	n := pub.N
	m := new(big.Int).SetBytes(messageBytes)
	if m.Cmp(n) >= 0 {
		return nil, nil, types.ErrMessageTooLarge
	}

	ir := new(big.Int)
	for {
		r, err = rand.Int(rand.Reader, n)
		if err != nil {
			return nil, nil, err
		}
		if r.Cmp(bigOne) <= 0 {
			continue
		}
		if ir.ModInverse(r, n) != nil {
			break
		}
	}

	e := big.NewInt(int64(pub.E))
	blinded := new(big.Int).Exp(r, e, n)
	blinded.Mul(blinded, m)
	blinded.Mod(blinded, n)

	return leftPad(blinded.Bytes(), byteLen(n)), r, nil
}

// SignBlinded raises the blinded integer to the private exponent mod n.
// It never looks at r — the mint cannot tell this call apart from signing
// an ordinary message.
func SignBlinded(blindedBytes []byte, priv PrivateKey) ([]byte, error) {
	c := new(big.Int).SetBytes(blindedBytes)
	if c.Cmp(priv.N) >= 0 {
		return nil, types.ErrMessageTooLarge
	}
	sig := new(big.Int).Exp(c, priv.D, priv.N)
	return leftPad(sig.Bytes(), byteLen(priv.N)), nil
}

// Unblind removes the blinding factor r from a blind signature, producing
// a signature over the original, unblinded message.
func Unblind(blindSigBytes []byte, r *big.Int, pub PublicKey) ([]byte, error) {
	if r == nil || r.Sign() == 0 {
		return nil, types.ErrInvalidBlindingFactor
	}
	rInv := new(big.Int).ModInverse(r, pub.N)
	if rInv == nil {
		return nil, types.ErrInvalidBlindingFactor
	}

	blindSig := new(big.Int).SetBytes(blindSigBytes)
	sig := new(big.Int).Mul(blindSig, rInv)
	sig.Mod(sig, pub.N)

	return leftPad(sig.Bytes(), byteLen(pub.N)), nil
}

// Verify reports whether signatureBytes is a valid raw-RSA signature over
// messageBytes under pub: signature^e mod n must equal the integer form
// of messageBytes. big.Int.SetBytes ignores any leading zero bytes when
// parsing, so a message passed with a single leading zero byte prepended
// (the fixed-width encoding ambiguity noted by callers hashing into a
// modulus-sized buffer) compares equal without any special-casing here.
func Verify(messageBytes, signatureBytes []byte, pub PublicKey) bool {
	sig := new(big.Int).SetBytes(signatureBytes)
	if sig.Cmp(pub.N) >= 0 {
		return false
	}
	e := big.NewInt(int64(pub.E))
	got := new(big.Int).Exp(sig, e, pub.N)
	want := new(big.Int).SetBytes(messageBytes)
	return got.Cmp(want) == 0
}
