package accounts

import (
	"encoding/json"
	"fmt"

	"github.com/flow-hydraulics/wallet-orchestrator/assets"
)

type TypeCode string

const (
	TypeMnemonic      TypeCode = "mnemonic"
	TypePrivateKey    TypeCode = "private_key"
	TypeHdExtendedKey TypeCode = "hd_extended_key"
	TypeHardwareCard  TypeCode = "hardware_card"
	TypeAddress       TypeCode = "address"
	TypeCex           TypeCode = "cex"
)

// Type is the key material or reference backing an account.
type Type interface {
	Code() TypeCode
	IsWatch() bool
}

// Mnemonic is a seed phrase with an optional passphrase.
type Mnemonic struct {
	Words      []string `json:"words"`
	Passphrase string   `json:"passphrase,omitempty"`
}

func (Mnemonic) Code() TypeCode { return TypeMnemonic }
func (Mnemonic) IsWatch() bool { return false }

// EvmPrivateKey is a raw hex encoded secp256k1 private key.
type EvmPrivateKey struct {
	Key string `json:"key"`
}

func (EvmPrivateKey) Code() TypeCode { return TypePrivateKey }
func (EvmPrivateKey) IsWatch() bool { return false }

// HdExtendedKey is a serialized BIP32 extended key. A public extended key
// makes the account watch-only.
type HdExtendedKey struct {
	Key     string `json:"key"`
	Private bool   `json:"private"`
}

func (HdExtendedKey) Code() TypeCode { return TypeHdExtendedKey }
func (k HdExtendedKey) IsWatch() bool { return !k.Private }

// HardwareCard references keys held on an external card.
type HardwareCard struct {
	CardID          string `json:"cardId"`
	WalletPublicKey string `json:"walletPublicKey"`
}

func (HardwareCard) Code() TypeCode { return TypeHardwareCard }
func (HardwareCard) IsWatch() bool { return false }

// WatchAddress watches a single address on one chain.
type WatchAddress struct {
	Blockchain assets.BlockchainType `json:"blockchain"`
	Address    string                `json:"address"`
}

func (WatchAddress) Code() TypeCode { return TypeAddress }
func (WatchAddress) IsWatch() bool { return true }

// Cex links an exchange account through API credentials.
type Cex struct {
	Exchange  string `json:"exchange"`
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
}

func (Cex) Code() TypeCode { return TypeCex }
func (Cex) IsWatch() bool { return false }

func encodeType(t Type) (TypeCode, []byte, error) {
	if t == nil {
		return "", nil, fmt.Errorf("account type is required")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", nil, err
	}
	return t.Code(), data, nil
}

// DecodeType decodes the JSON payload of an account type.
func DecodeType(code TypeCode, data []byte) (Type, error) {
	var t Type
	switch code {
	case TypeMnemonic:
		t = &Mnemonic{}
	case TypePrivateKey:
		t = &EvmPrivateKey{}
	case TypeHdExtendedKey:
		t = &HdExtendedKey{}
	case TypeHardwareCard:
		t = &HardwareCard{}
	case TypeAddress:
		t = &WatchAddress{}
	case TypeCex:
		t = &Cex{}
	default:
		return nil, fmt.Errorf("unknown account type %q", code)
	}

	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("error while decoding account type %q: %w", code, err)
	}

	// Return values, not pointers, so type switches match on the value types.
	switch v := t.(type) {
	case *Mnemonic:
		return *v, nil
	case *EvmPrivateKey:
		return *v, nil
	case *HdExtendedKey:
		return *v, nil
	case *HardwareCard:
		return *v, nil
	case *WatchAddress:
		return *v, nil
	case *Cex:
		return *v, nil
	}
	return t, nil
}
