// Package flow provides the adapter of native FLOW wallets, backed by the
// Flow access API.
package flow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/chains"
	"github.com/flow-hydraulics/wallet-orchestrator/chains/poller"
	"github.com/flow-hydraulics/wallet-orchestrator/errors"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/onflow/flow-go-sdk"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Decimals of the native FLOW token.
const Decimals = 8

const hexPrefix = "0x"

// Client is the part of the access API used by the adapter.
type Client interface {
	GetAccountAtLatestBlock(ctx context.Context, address flow.Address) (*flow.Account, error)
	GetLatestBlockHeader(ctx context.Context, isSealed bool) (*flow.BlockHeader, error)
}

type Config struct {
	ChainID      flow.ChainID
	SyncInterval time.Duration
	MaxBackoff   time.Duration
	Logger       *log.Logger
}

type Adapter struct {
	*chains.BalanceTracker
	adapters.ReceiveDefaults

	wallet  wallets.Wallet
	address flow.Address
	client  Client
	chainID flow.ChainID
	poller  *poller.Poller

	mu        sync.Mutex
	lastBlock *adapters.LastBlockInfo
}

// NewFactory returns the factory of FLOW wallet adapters.
func NewFactory(client Client, cfg Config) adapters.Factory {
	return adapters.FactoryFunc(func(ctx context.Context, w wallets.Wallet) (adapters.Adapter, error) {
		return New(client, w, cfg)
	})
}

func New(client Client, w wallets.Wallet, cfg Config) (*Adapter, error) {
	if w.Blockchain() != assets.Flow {
		return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedBlockchain, w.Blockchain())
	}
	if w.Token.Query.TokenType.Kind != assets.Native {
		return nil, fmt.Errorf("%w: %s", chains.ErrUnsupportedToken, w.Token.Query.ID())
	}

	raw, err := chains.ReceiveAddress(w.Account, assets.Flow)
	if err != nil {
		return nil, err
	}
	address, err := ValidateAddress(raw, cfg.ChainID)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	a := &Adapter{
		BalanceTracker: chains.NewBalanceTracker(),
		wallet:         w,
		address:        address,
		client:         client,
		chainID:        cfg.ChainID,
	}

	opts := []poller.Option{
		poller.WithLogger(logger),
		poller.WithRetryable(errors.IsChainConnectionError),
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
	account, err := a.client.GetAccountAtLatestBlock(ctx, a.address)
	if err != nil {
		return fmt.Errorf("error while getting account %s: %w", FormatAddress(a.address), err)
	}

	header, err := a.client.GetLatestBlockHeader(ctx, true)
	if err != nil {
		return fmt.Errorf("error while getting latest block header: %w", err)
	}

	a.SetBalance(adapters.BalanceData{
		Available: decimal.NewFromBigInt(new(big.Int).SetUint64(account.Balance), -Decimals),
		Locked:    decimal.Zero,
	})

	ts := header.Timestamp
	a.mu.Lock()
	a.lastBlock = &adapters.LastBlockInfo{Height: header.Height, Timestamp: &ts}
	a.mu.Unlock()

	return nil
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
	info := fmt.Sprintf("address=%s chain=%s state=%s", FormatAddress(a.address), a.chainID, a.BalanceState())
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
	return FormatAddress(a.address)
}

func (a *Adapter) IsMainNet() bool {
	return a.chainID == flow.Mainnet
}

// IsAddressActive reports whether an account exists at address.
func (a *Adapter) IsAddressActive(ctx context.Context, address string) (bool, error) {
	addr, err := ValidateAddress(address, a.chainID)
	if err != nil {
		return false, err
	}
	if _, err := a.client.GetAccountAtLatestBlock(ctx, addr); err != nil {
		if status.Code(unwrapStatus(err)) == codes.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func unwrapStatus(err error) error {
	for e := err; e != nil; {
		if _, ok := status.FromError(e); ok {
			return e
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return err
}

func HexString(str string) string {
	if strings.HasPrefix(str, hexPrefix) {
		return str
	}
	return fmt.Sprintf("%s%s", hexPrefix, str)
}

func FormatAddress(address flow.Address) string {
	return HexString(address.Hex())
}

func ValidateAddress(address string, chainID flow.ChainID) (flow.Address, error) {
	flowAddress := flow.HexToAddress(address)
	if address == "" || !flowAddress.IsValid(chainID) {
		return flow.Address{}, fmt.Errorf(`not a valid address: "%s"`, address)
	}
	return flowAddress, nil
}
