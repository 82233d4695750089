package zkdeploy

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

// Network selects the address prefix and header network id.
type Network uint8

const (
	// Testnet covers preview and preprod (network id 0).
	Testnet Network = 0

	// Mainnet is network id 1.
	Mainnet Network = 1
)

// HRP returns the bech32 human-readable prefix for addresses on n.
func (n Network) HRP() string {
	if n == Mainnet {
		return "addr"
	}
	return "addr_test"
}

func (n Network) String() string {
	if n == Mainnet {
		return "mainnet"
	}
	return "testnet"
}

// ParseNetwork maps "mainnet" and "testnet" (also "preview", "preprod") to a Network.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "mainnet":
		return Mainnet, nil
	case "testnet", "preview", "preprod", "":
		return Testnet, nil
	default:
		return Testnet, fmt.Errorf("zkdeploy: unknown network %q", s)
	}
}

// Credential hash size shared by key hashes and script hashes.
const CredentialSize = 28

// Address header types (upper nibble of the first byte).
const (
	addrBaseKeyKey       = 0x0
	addrBaseKeyScript    = 0x2
	addrPointerKey       = 0x4
	addrEnterpriseKey    = 0x6
	addrEnterpriseScript = 0x7
)

// plutusV3ScriptTag prefixes script bytes before hashing.
const plutusV3ScriptTag = 0x03

// Address is a bech32-encoded ledger address.
type Address string

func (a Address) String() string {
	return string(a)
}

// ScriptHash returns the blake2b-224 hash identifying a Plutus V3 script.
func ScriptHash(script []byte) []byte {
	h, _ := blake2b.New(CredentialSize, nil)
	h.Write([]byte{plutusV3ScriptTag})
	h.Write(script)
	return h.Sum(nil)
}

// KeyHash returns the blake2b-224 hash of a verification key.
func KeyHash(vkey []byte) []byte {
	h, _ := blake2b.New(CredentialSize, nil)
	h.Write(vkey)
	return h.Sum(nil)
}

// ScriptAddress builds the enterprise address locked by a script hash.
func ScriptAddress(scriptHash []byte, network Network) (Address, error) {
	return encodeAddress(addrEnterpriseScript, scriptHash, network)
}

// KeyAddress builds the enterprise address owned by a key hash.
func KeyAddress(keyHash []byte, network Network) (Address, error) {
	return encodeAddress(addrEnterpriseKey, keyHash, network)
}

func encodeAddress(kind byte, credential []byte, network Network) (Address, error) {
	if len(credential) != CredentialSize {
		return "", fmt.Errorf("%w: credential is %d bytes, want %d", ErrInvalidAddress, len(credential), CredentialSize)
	}
	raw := make([]byte, 0, 1+CredentialSize)
	raw = append(raw, kind<<4|byte(network))
	raw = append(raw, credential...)

	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	s, err := bech32.Encode(network.HRP(), conv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address(s), nil
}

// Bytes decodes the address into its raw header and payload.
func (a Address) Bytes() ([]byte, error) {
	_, data, err := bech32.DecodeNoLimit(string(a))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 1+CredentialSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(raw))
	}
	return raw, nil
}

// Network returns the network id encoded in the address header.
func (a Address) Network() (Network, error) {
	raw, err := a.Bytes()
	if err != nil {
		return Testnet, err
	}
	return Network(raw[0] & 0x0f), nil
}

// PaymentKeyHash returns the payment key hash of a key-owned address,
// the value used as a transaction's required signer.
func PaymentKeyHash(a Address) ([]byte, error) {
	raw, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	switch raw[0] >> 4 {
	case addrBaseKeyKey, addrBaseKeyScript, addrPointerKey, addrEnterpriseKey:
		return raw[1 : 1+CredentialSize], nil
	default:
		return nil, fmt.Errorf("%w: %s has a script payment credential", ErrInvalidAddress, a)
	}
}
