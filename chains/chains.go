// Package chains builds adapters for wallets, dispatching on the wallet's
// blockchain.
package chains

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedBlockchain  = errors.New("unsupported blockchain")
	ErrUnsupportedAccountType = errors.New("unsupported account type")
	ErrUnsupportedToken       = errors.New("unsupported token")
)

// Registry is an adapters.Factory keyed by blockchain.
type Registry struct {
	logger *log.Logger

	mu        sync.RWMutex
	factories map[assets.BlockchainType]adapters.Factory
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: make(map[assets.BlockchainType]adapters.Factory),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = log.StandardLogger()
	}

	return r
}

func (r *Registry) Register(b assets.BlockchainType, f adapters.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[b] = f
}

func (r *Registry) Blockchains() []assets.BlockchainType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bb := make([]assets.BlockchainType, 0, len(r.factories))
	for b := range r.factories {
		bb = append(bb, b)
	}
	sort.Slice(bb, func(i, j int) bool { return bb[i] < bb[j] })
	return bb
}

func (r *Registry) Create(ctx context.Context, w wallets.Wallet) (adapters.Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[w.Blockchain()]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBlockchain, w.Blockchain())
	}

	r.logger.
		WithFields(log.Fields{"wallet": w.Key(), "blockchain": w.Blockchain()}).
		Debug("Creating adapter")

	return f.Create(ctx, w)
}

// ReceiveAddress resolves the address of account a on chain b.
func ReceiveAddress(a accounts.Account, b assets.BlockchainType) (string, error) {
	switch t := a.Type.(type) {
	case accounts.WatchAddress:
		if t.Blockchain == b || (t.Blockchain.IsEvm() && b.IsEvm()) {
			return t.Address, nil
		}
		return "", fmt.Errorf("%w: address of %s watched on %s", ErrUnsupportedAccountType, t.Blockchain, b)
	case accounts.EvmPrivateKey:
		if !b.IsEvm() {
			return "", fmt.Errorf("%w: evm private key on %s", ErrUnsupportedAccountType, b)
		}
		return evmAddress(t.Key)
	case accounts.Mnemonic, accounts.HdExtendedKey:
		return "", fmt.Errorf("%w: key derivation for %s is not supported", ErrUnsupportedAccountType, b)
	case nil:
		return "", fmt.Errorf("%w: account %s has no type", ErrUnsupportedAccountType, a.ID)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAccountType, t.Code())
	}
}

func evmAddress(hexKey string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// IsEvmAddress reports whether s is a hex encoded EVM address.
func IsEvmAddress(s string) bool {
	return common.IsHexAddress(s)
}
