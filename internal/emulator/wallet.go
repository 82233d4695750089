package emulator

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

// SeedSize is the length of a signing key seed.
const SeedSize = ed25519.SeedSize

var errBadSignature = errors.New("InvalidWitnesses: signature does not verify")

// Wallet holds one ed25519 payment key and its enterprise address.
type Wallet struct {
	priv    ed25519.PrivateKey
	keyHash []byte
	address zkdeploy.Address
}

// NewWallet derives a wallet from a 32-byte seed.
func NewWallet(seed []byte, network zkdeploy.Network) (*Wallet, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("signing key is %d bytes, want %d", len(seed), SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	keyHash := zkdeploy.KeyHash(priv.Public().(ed25519.PublicKey))
	addr, err := zkdeploy.KeyAddress(keyHash, network)
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv, keyHash: keyHash, address: addr}, nil
}

// GenerateSeed returns a fresh random signing key seed.
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// ParseSeed decodes the hex text form of a signing key, as stored in key files.
func ParseSeed(text []byte) ([]byte, error) {
	s := strings.TrimSpace(string(text))
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signing key is not hex: %w", err)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("signing key is %d bytes, want %d", len(seed), SeedSize)
	}
	return seed, nil
}

// FormatSeed returns the key file text form of seed.
func FormatSeed(seed []byte) []byte {
	return []byte(hex.EncodeToString(seed) + "\n")
}

// KeyHash returns the payment key hash.
func (w *Wallet) KeyHash() []byte {
	return bytes.Clone(w.keyHash)
}

// Address returns the wallet's enterprise address.
func (w *Wallet) Address() zkdeploy.Address {
	return w.address
}

// Sign witnesses a transaction body.
func (w *Wallet) Sign(body zkdeploy.UnsignedTx) (zkdeploy.SignedTx, error) {
	return encMode.Marshal(wireSigned{
		Body:      body,
		Signer:    w.priv.Public().(ed25519.PublicKey),
		Signature: ed25519.Sign(w.priv, body),
	})
}

// OpenSigned verifies the witness on tx and returns the body and the
// signer's key hash.
func OpenSigned(tx zkdeploy.SignedTx) (body []byte, signer []byte, err error) {
	var w wireSigned
	if err := cbor.Unmarshal(tx, &w); err != nil {
		return nil, nil, fmt.Errorf("decode signed tx: %w", err)
	}
	if len(w.Signer) != ed25519.PublicKeySize || !ed25519.Verify(w.Signer, w.Body, w.Signature) {
		return nil, nil, errBadSignature
	}
	return w.Body, zkdeploy.KeyHash(w.Signer), nil
}
