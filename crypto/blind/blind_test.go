package blind

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/chaumint/mintd/types"
)

func genKey(t *testing.T, bits int) (PublicKey, PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatal(err)
	}
	pub := PublicKey{N: key.N, E: key.E}
	priv := PrivateKey{N: key.N, D: key.D}
	return pub, priv
}

func TestBlindSignUnblindVerifyRoundTrip(t *testing.T) {
	pub, priv := genKey(t, types.MinModulusBits)

	digest := sha256.Sum256([]byte("hello mint"))
	message := digest[:]

	blinded, r, err := Blind(message, pub)
	if err != nil {
		t.Fatal(err)
	}

	blindSig, err := SignBlinded(blinded, priv)
	if err != nil {
		t.Fatal(err)
	}

	sig, err := Unblind(blindSig, r, pub)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(message, sig, pub) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	pub, priv := genKey(t, types.MinModulusBits)
	digest := sha256.Sum256([]byte("hello mint"))
	message := digest[:]

	blinded, r, err := Blind(message, pub)
	if err != nil {
		t.Fatal(err)
	}
	blindSig, err := SignBlinded(blinded, priv)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Unblind(blindSig, r, pub)
	if err != nil {
		t.Fatal(err)
	}

	sig[len(sig)-1] ^= 0xff
	if Verify(message, sig, pub) {
		t.Fatal("expected tampered signature to be rejected")
	}
}

func TestVerifyToleratesLeadingZeroByte(t *testing.T) {
	pub, priv := genKey(t, types.MinModulusBits)
	digest := sha256.Sum256([]byte("leading zero"))
	message := digest[:]

	blinded, r, err := Blind(message, pub)
	if err != nil {
		t.Fatal(err)
	}
	blindSig, err := SignBlinded(blinded, priv)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Unblind(blindSig, r, pub)
	if err != nil {
		t.Fatal(err)
	}

	padded := append([]byte{0x00}, message...)
	if !Verify(padded, sig, pub) {
		t.Fatal("expected verify to tolerate a leading zero byte on the message")
	}
}

func TestBlindRejectsOversizedMessage(t *testing.T) {
	pub, _ := genKey(t, 512)
	oversized := make([]byte, 128)
	for i := range oversized {
		oversized[i] = 0xff
	}
	if _, _, err := Blind(oversized, pub); err != types.ErrMessageTooLarge {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestUnblindRejectsZeroBlindingFactor(t *testing.T) {
	pub, _ := genKey(t, types.MinModulusBits)
	if _, err := Unblind([]byte{1, 2, 3}, nil, pub); err != types.ErrInvalidBlindingFactor {
		t.Fatalf("expected ErrInvalidBlindingFactor for nil r, got %v", err)
	}
}
