package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"staytoken/internal/models"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Verifier recovers the signer of a structured cancellation message. It holds
// no state; the controller compares the recovered address against the booking
// owner.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// CancellationMessage builds the deterministic, human-readable encoding of the
// agreed figures, one line per booking, so an off-chain approver reviews
// exactly what they sign.
func (v *Verifier) CancellationMessage(terms []models.CancellationTerms) string {
	var b strings.Builder
	b.WriteString("Cancellation approval\n")
	for _, t := range terms {
		fmt.Fprintf(&b, "penalty=%d refund=%d charges=%d\n", t.Penalty, t.Refund, t.Charges)
	}
	return b.String()
}

// RecoverSigner recovers the address that produced a compact secp256k1
// signature over the message. A malformed signature surfaces as
// ErrSignatureMismatch.
func (v *Verifier) RecoverSigner(message string, sig []byte) (models.Address, error) {
	hash := sha256.Sum256([]byte(message))
	pub, _, err := ecdsa.RecoverCompact(sig, hash[:])
	if err != nil {
		return models.ZeroAddress, fmt.Errorf("recover signer: %v: %w", err, models.ErrSignatureMismatch)
	}
	return PubKeyAddress(pub), nil
}

// Sign produces a compact signature over the message. Off-chain approval
// tooling and tests use it; the protocol core only recovers.
func Sign(key *secp256k1.PrivateKey, message string) []byte {
	hash := sha256.Sum256([]byte(message))
	return ecdsa.SignCompact(key, hash[:], true)
}

// PubKeyAddress derives the canonical address of a public key: the last 20
// bytes of the sha256 of its compressed serialization, hex encoded.
func PubKeyAddress(pub *secp256k1.PublicKey) models.Address {
	digest := sha256.Sum256(pub.SerializeCompressed())
	return models.Address("0x" + hex.EncodeToString(digest[12:]))
}
