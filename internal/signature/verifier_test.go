package signature

import (
	"testing"

	"staytoken/internal/models"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellationMessage(t *testing.T) {
	v := NewVerifier()

	msg := v.CancellationMessage([]models.CancellationTerms{
		{Penalty: 100, Refund: 900, Charges: 50},
		{Penalty: 0, Refund: 500, Charges: 0},
	})

	assert.Equal(t,
		"Cancellation approval\npenalty=100 refund=900 charges=50\npenalty=0 refund=500 charges=0\n",
		msg)
}

func TestRecoverSigner_RoundTrip(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	v := NewVerifier()
	msg := v.CancellationMessage([]models.CancellationTerms{{Refund: 1000}})
	sig := Sign(key, msg)

	signer, err := v.RecoverSigner(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, PubKeyAddress(key.PubKey()), signer)
}

func TestRecoverSigner_TamperedMessage(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	v := NewVerifier()
	sig := Sign(key, v.CancellationMessage([]models.CancellationTerms{{Refund: 1000}}))

	// Другая сумма возврата восстанавливает другой адрес
	tampered := v.CancellationMessage([]models.CancellationTerms{{Refund: 2000}})
	signer, err := v.RecoverSigner(tampered, sig)
	if err == nil {
		assert.NotEqual(t, PubKeyAddress(key.PubKey()), signer)
	}
}

func TestRecoverSigner_Malformed(t *testing.T) {
	v := NewVerifier()
	_, err := v.RecoverSigner("anything", []byte{0x01, 0x02})
	assert.ErrorIs(t, err, models.ErrSignatureMismatch)
}

func TestPubKeyAddress_Canonical(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	addr := PubKeyAddress(key.PubKey())
	assert.Len(t, string(addr), 2+40)
	assert.Equal(t, addr, addr.Normalize())
	assert.False(t, addr.IsZero())
}
