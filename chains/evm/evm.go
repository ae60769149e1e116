// Package evm provides the adapter of native coin and EIP-20 token wallets
// on EVM chains, backed by a JSON-RPC node.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/chains"
	"github.com/flow-hydraulics/wallet-orchestrator/chains/poller"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// NativeDecimals of the coin of every supported EVM chain.
const NativeDecimals = 18

var mainNetChainIDs = map[assets.BlockchainType]int64{
	assets.Ethereum:          1,
	assets.Optimism:          10,
	assets.BinanceSmartChain: 56,
	assets.Polygon:           137,
	assets.ArbitrumOne:       42161,
	assets.Avalanche:         43114,
}

// Client is the part of the node API used by the adapter. It is satisfied
// by *ethclient.Client.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Config struct {
	SyncInterval time.Duration
	MaxBackoff   time.Duration
	Logger       *log.Logger
}

type Adapter struct {
	*chains.BalanceTracker
	adapters.ReceiveDefaults

	wallet   wallets.Wallet
	address  common.Address
	contract *common.Address
	decimals int32
	client   Client
	breaker  *gobreaker.CircuitBreaker
	poller   *poller.Poller

	mu        sync.Mutex
	chainID   *big.Int
	lastBlock *adapters.LastBlockInfo
}

// NewFactory returns the factory of adapters for blockchain b. All adapters
// it creates share one circuit breaker around client.
func NewFactory(b assets.BlockchainType, client Client, cfg Config) adapters.Factory {
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	breaker := newCircuitBreaker(string(b), cfg.Logger)

	return adapters.FactoryFunc(func(ctx context.Context, w wallets.Wallet) (adapters.Adapter, error) {
		if w.Blockchain() != b {
			return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedBlockchain, w.Blockchain())
		}
		return newAdapter(client, breaker, w, cfg)
	})
}

func New(client Client, w wallets.Wallet, cfg Config) (*Adapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	return newAdapter(client, newCircuitBreaker(string(w.Blockchain()), cfg.Logger), w, cfg)
}

func newAdapter(client Client, breaker *gobreaker.CircuitBreaker, w wallets.Wallet, cfg Config) (*Adapter, error) {
	if !w.Blockchain().IsEvm() {
		return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedBlockchain, w.Blockchain())
	}

	a := &Adapter{
		BalanceTracker: chains.NewBalanceTracker(),
		wallet:         w,
		client:         client,
		breaker:        breaker,
	}

	tokenType := w.Token.Query.TokenType
	switch tokenType.Kind {
	case assets.Native:
		a.decimals = NativeDecimals
	case assets.Eip20:
		contract, ok := isContractAddress(tokenType.Reference)
		if !ok {
			return nil, fmt.Errorf("%w: invalid contract address %q", chains.ErrUnsupportedToken, tokenType.Reference)
		}
		a.contract = &contract
		a.decimals = int32(w.Token.Decimals)
	default:
		return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedToken, w.Token.Query.ID())
	}

	raw, err := chains.ReceiveAddress(w.Account, w.Blockchain())
	if err != nil {
		return nil, err
	}
	if !chains.IsEvmAddress(raw) {
		return nil, fmt.Errorf(`not a valid address: "%s"`, raw)
	}
	a.address = common.HexToAddress(raw)

	opts := []poller.Option{
		poller.WithLogger(cfg.Logger),
		poller.WithRetryable(isRetryable),
		poller.WithStateHook(a.SetState),
	}
	if cfg.SyncInterval > 0 {
		opts = append(opts, poller.WithInterval(cfg.SyncInterval))
	}
	if cfg.MaxBackoff > 0 {
		opts = append(opts, poller.WithBackoff(time.Second, cfg.MaxBackoff))
	}
	a.poller = poller.New(w.String(), a.sync, opts...)

	return a, nil
}

func (a *Adapter) sync(ctx context.Context) error {
	if a.knownChainID() == nil {
		id, err := call(a.breaker, func() (*big.Int, error) {
			return a.client.ChainID(ctx)
		})
		if err != nil {
			return fmt.Errorf("error while getting chain id: %w", err)
		}
		a.mu.Lock()
		a.chainID = id
		a.mu.Unlock()
	}

	header, err := call(a.breaker, func() (*types.Header, error) {
		return a.client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return fmt.Errorf("error while getting latest block header: %w", err)
	}

	var balance *big.Int
	if a.contract != nil {
		balance, err = a.tokenBalance(ctx)
	} else {
		balance, err = call(a.breaker, func() (*big.Int, error) {
			return a.client.BalanceAt(ctx, a.address, header.Number)
		})
	}
	if err != nil {
		return fmt.Errorf("error while getting balance of %s: %w", a.address.Hex(), err)
	}

	a.SetBalance(adapters.BalanceData{
		Available: decimal.NewFromBigInt(balance, -a.decimals),
		Locked:    decimal.Zero,
	})

	ts := time.Unix(int64(header.Time), 0).UTC()
	a.mu.Lock()
	a.lastBlock = &adapters.LastBlockInfo{Height: header.Number.Uint64(), Timestamp: &ts}
	a.mu.Unlock()

	return nil
}

func (a *Adapter) knownChainID() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chainID
}

func (a *Adapter) Start() error {
	a.poller.Start()
	return nil
}

func (a *Adapter) Stop() {
	a.poller.Stop()
	a.BalanceTracker.Close()
}

func (a *Adapter) Refresh(ctx context.Context) error {
	return a.poller.Refresh(ctx)
}

func (a *Adapter) DebugInfo() string {
	info := fmt.Sprintf("address=%s breaker=%s state=%s", a.address.Hex(), a.breaker.State(), a.BalanceState())
	if a.contract != nil {
		info += " contract=" + a.contract.Hex()
	}
	if b := a.LastBlockInfo(); b != nil {
		info += fmt.Sprintf(" lastBlock=%d", b.Height)
	}
	return info
}

func (a *Adapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{Balance: a, Receive: a}
}

func (a *Adapter) LastBlockInfo() *adapters.LastBlockInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastBlock == nil {
		return nil
	}
	b := *a.lastBlock
	return &b
}

func (a *Adapter) ReceiveAddress() string {
	return a.address.Hex()
}

// IsMainNet compares the node's chain id with the main net id of the
// wallet's blockchain. It is true until the chain id is known.
func (a *Adapter) IsMainNet() bool {
	id := a.knownChainID()
	want, ok := mainNetChainIDs[a.wallet.Blockchain()]
	if id == nil || !ok {
		return true
	}
	return id.Int64() == want
}

// IsAddressActive reports whether address has sent a transaction or holds
// a native balance.
func (a *Adapter) IsAddressActive(ctx context.Context, address string) (bool, error) {
	if !chains.IsEvmAddress(address) {
		return false, fmt.Errorf(`not a valid address: "%s"`, address)
	}
	addr := common.HexToAddress(address)

	nonce, err := call(a.breaker, func() (uint64, error) {
		return a.client.NonceAt(ctx, addr, nil)
	})
	if err != nil {
		return false, err
	}
	if nonce > 0 {
		return true, nil
	}

	balance, err := call(a.breaker, func() (*big.Int, error) {
		return a.client.BalanceAt(ctx, addr, nil)
	})
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}

// ParseRPCURLs parses node endpoints given as "blockchain=url" entries.
func ParseRPCURLs(entries []string) (map[assets.BlockchainType]string, error) {
	urls := make(map[assets.BlockchainType]string, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid rpc url entry %q", entry)
		}
		b := assets.BlockchainType(strings.TrimSpace(name))
		if !b.IsEvm() {
			return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedBlockchain, b)
		}
		if _, dup := urls[b]; dup {
			return nil, fmt.Errorf("duplicate rpc url for %s", b)
		}
		urls[b] = strings.TrimSpace(url)
	}
	return urls, nil
}
