// Package address converts between hex public keys and bech32 addresses.
package address

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// HRP is the human readable part of every address
const HRP = "erd"

// PubKeyLength is the length of a decoded public key
const PubKeyLength = 32

var smartContractPrefix = make([]byte, 8)

// ErrInvalidAddress is returned for strings that are not a valid address
var ErrInvalidAddress = errors.New("invalid address")

// Encode converts a hex public key to its bech32 form
func Encode(pubKeyHex string) (string, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return EncodePubKey(pubKey)
}

// EncodePubKey converts a raw public key to its bech32 form
func EncodePubKey(pubKey []byte) (string, error) {
	if len(pubKey) != PubKeyLength {
		return "", fmt.Errorf("%w: public key has %d bytes", ErrInvalidAddress, len(pubKey))
	}
	converted, err := bech32.ConvertBits(pubKey, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(HRP, converted)
}

// Decode returns the public key of a bech32 address
func Decode(address string) ([]byte, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != HRP {
		return nil, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, hrp)
	}
	pubKey, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(pubKey) != PubKeyLength {
		return nil, fmt.Errorf("%w: public key has %d bytes", ErrInvalidAddress, len(pubKey))
	}
	return pubKey, nil
}

// IsValid reports whether address decodes to a public key
func IsValid(address string) bool {
	_, err := Decode(address)
	return err == nil
}

// IsSmartContract reports whether address belongs to a smart contract.
// Contract public keys start with eight zero bytes.
func IsSmartContract(address string) bool {
	pubKey, err := Decode(address)
	if err != nil {
		return false
	}
	return bytes.HasPrefix(pubKey, smartContractPrefix)
}
