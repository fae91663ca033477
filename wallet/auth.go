package wallet

import (
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

// transferDomain separates transfer digests from any other signed message.
var transferDomain = []byte("royalty/transfer/v1")

// TransferAuthorization is a sender-signed instruction to move shares of
// one asset. Nonce must exceed the last nonce accepted for the sender on
// that asset.
type TransferAuthorization struct {
	Asset     [32]byte
	From      revshare.Address
	To        revshare.Address
	Amount    uint64
	Nonce     uint64
	PubKey    []byte // compressed secp256k1 key of From
	Signature []byte // DER-encoded ECDSA signature over Digest
}

// Digest returns the double-SHA256 message hash the signature covers.
func (a *TransferAuthorization) Digest() chainhash.Hash {
	buf := make([]byte, 0, len(transferDomain)+32+2*revshare.AddressSize+16)
	buf = append(buf, transferDomain...)
	buf = append(buf, a.Asset[:]...)
	buf = append(buf, a.From[:]...)
	buf = append(buf, a.To[:]...)
	buf = binary.BigEndian.AppendUint64(buf, a.Amount)
	buf = binary.BigEndian.AppendUint64(buf, a.Nonce)
	return chainhash.DoubleHashH(buf)
}

// SignTransfer builds and signs an authorization moving amount shares of
// asset from key's address to to.
func SignTransfer(key *KeyPair, asset [32]byte, to revshare.Address, amount, nonce uint64) (*TransferAuthorization, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, fmt.Errorf("%w: key", ErrNilParam)
	}
	pub := key.PrivateKey.PubKey()
	auth := &TransferAuthorization{
		Asset:  asset,
		From:   AddressFromPubKey(pub),
		To:     to,
		Amount: amount,
		Nonce:  nonce,
		PubKey: pub.Compressed(),
	}
	digest := auth.Digest()
	sig, err := key.PrivateKey.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("wallet: sign transfer: %w", err)
	}
	auth.Signature = sig.Serialize()
	return auth, nil
}

// Verify checks that PubKey hashes to From and that Signature is a valid
// signature over Digest.
func (a *TransferAuthorization) Verify() error {
	pub, err := ec.PublicKeyFromBytes(a.PubKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}
	if AddressFromPubKey(pub) != a.From {
		return ErrSignerMismatch
	}
	sig, err := ec.ParseDERSignature(a.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	digest := a.Digest()
	if !sig.Verify(digest[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}
