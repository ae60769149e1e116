package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/chains"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"
)

const (
	holder   = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	usdtAddr = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

type fakeClient struct {
	mu       sync.Mutex
	chainID  int64
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	tokens   map[common.Address]*big.Int
	err      error
	calls    int
}

func (c *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return big.NewInt(c.chainID), nil
}

func (c *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if b, ok := c.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (c *fakeClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.nonces[account], nil
}

func (c *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.calls++
	return &types.Header{Number: big.NewInt(int64(100 + c.calls)), Time: 1700000000}, nil
}

func (c *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	b, ok := c.tokens[*msg.To]
	if !ok {
		return nil, nil
	}
	return parsedERC20.Methods["balanceOf"].Outputs.Pack(b)
}

func (c *fakeClient) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

var (
	eth  = assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Ethereum, TokenType: assets.NativeToken()}, Name: "Ethereum", Code: "ETH", Decimals: 18}
	usdt = assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Ethereum, TokenType: assets.TokenType{Kind: assets.Eip20, Reference: usdtAddr}}, Name: "Tether", Code: "USDT", Decimals: 6}
)

func watchWallet(tok assets.Token, address string) wallets.Wallet {
	return wallets.New(tok, accounts.Account{
		ID:   "x",
		Type: accounts.WatchAddress{Blockchain: assets.Ethereum, Address: address},
	})
}

func newTestAdapter(t *testing.T, client Client, w wallets.Wallet) *Adapter {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := New(client, w, Config{SyncInterval: time.Hour, MaxBackoff: time.Hour, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func waitBalance(t *testing.T, sub *events.Subscription[adapters.BalanceEvent], kind adapters.StateKind) adapters.BalanceEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-sub.C():
			if e.State.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestAdapterSyncsNativeBalance(t *testing.T) {
	defer goleak.VerifyNone(t)

	wei, _ := new(big.Int).SetString("2500000000000000000", 10)
	client := &fakeClient{chainID: 1, balances: map[common.Address]*big.Int{common.HexToAddress(holder): wei}}
	a := newTestAdapter(t, client, watchWallet(eth, holder))

	sub := a.SubscribeBalance()
	defer sub.Unsubscribe()

	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	e := waitBalance(t, sub, adapters.KindSynced)
	if e.Balance.Available.String() != "2.5" {
		t.Fatalf("expected balance 2.5, got %s", e.Balance.Available)
	}
	if !a.IsMainNet() {
		t.Fatal("expected main net")
	}

	b := a.LastBlockInfo()
	if b == nil || b.Height != 101 {
		t.Fatalf("expected last block 101, got %+v", b)
	}
	if !b.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected block time %s", b.Timestamp)
	}
	if a.ReceiveAddress() != holder {
		t.Fatalf("unexpected receive address %s", a.ReceiveAddress())
	}
}

func TestAdapterSyncsTokenBalance(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeClient{
		chainID: 5,
		tokens:  map[common.Address]*big.Int{common.HexToAddress(usdtAddr): big.NewInt(12345678)},
	}
	a := newTestAdapter(t, client, watchWallet(usdt, holder))

	sub := a.SubscribeBalance()
	defer sub.Unsubscribe()

	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	e := waitBalance(t, sub, adapters.KindSynced)
	if e.Balance.Available.String() != "12.345678" {
		t.Fatalf("expected balance 12.345678, got %s", e.Balance.Available)
	}
	if a.IsMainNet() {
		t.Fatal("expected a test network")
	}
}

func TestAdapterReportsNodeFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeClient{chainID: 1}
	client.fail(errors.New("connection refused"))
	a := newTestAdapter(t, client, watchWallet(eth, holder))

	sub := a.SubscribeBalance()
	defer sub.Unsubscribe()

	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	e := waitBalance(t, sub, adapters.KindNotSynced)
	if e.State.Err == nil {
		t.Fatal("expected error in state")
	}

	client.fail(nil)
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitBalance(t, sub, adapters.KindSynced)
}

func TestAdapterIsAddressActive(t *testing.T) {
	sender := common.HexToAddress("0x0000000000000000000000000000000000000001")
	funded := common.HexToAddress("0x0000000000000000000000000000000000000002")
	client := &fakeClient{
		chainID:  1,
		nonces:   map[common.Address]uint64{sender: 3},
		balances: map[common.Address]*big.Int{funded: big.NewInt(1)},
	}
	a := newTestAdapter(t, client, watchWallet(eth, holder))
	defer a.Stop()

	cases := []struct {
		address string
		want    bool
	}{
		{sender.Hex(), true},
		{funded.Hex(), true},
		{"0x0000000000000000000000000000000000000003", false},
	}
	for _, c := range cases {
		got, err := a.IsAddressActive(context.Background(), c.address)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Fatalf("IsAddressActive(%s): expected %v, got %v", c.address, c.want, got)
		}
	}

	if _, err := a.IsAddressActive(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewRejectsUnsupportedWallets(t *testing.T) {
	client := &fakeClient{}
	cfg := Config{}

	bep2 := assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Ethereum, TokenType: assets.TokenType{Kind: assets.Bep2, Reference: "BNB"}}}
	if _, err := New(client, watchWallet(bep2, holder), cfg); !errors.Is(err, chains.ErrUnsupportedToken) {
		t.Fatalf("expected ErrUnsupportedToken, got %v", err)
	}

	bad := assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Ethereum, TokenType: assets.TokenType{Kind: assets.Eip20, Reference: "0x12"}}}
	if _, err := New(client, watchWallet(bad, holder), cfg); !errors.Is(err, chains.ErrUnsupportedToken) {
		t.Fatalf("expected ErrUnsupportedToken, got %v", err)
	}

	btc := assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Bitcoin, TokenType: assets.NativeToken()}}
	if _, err := New(client, wallets.New(btc, accounts.Account{ID: "x"}), cfg); !errors.Is(err, chains.ErrUnsupportedBlockchain) {
		t.Fatalf("expected ErrUnsupportedBlockchain, got %v", err)
	}

	if _, err := New(client, watchWallet(eth, "not-an-address"), cfg); err == nil {
		t.Fatal("expected an error for an invalid address")
	}
}

func TestFactoryChecksBlockchain(t *testing.T) {
	f := NewFactory(assets.Polygon, &fakeClient{}, Config{})
	if _, err := f.Create(context.Background(), watchWallet(eth, holder)); !errors.Is(err, chains.ErrUnsupportedBlockchain) {
		t.Fatalf("expected ErrUnsupportedBlockchain, got %v", err)
	}
}

func TestParseRPCURLs(t *testing.T) {
	got, err := ParseRPCURLs([]string{"ethereum=http://localhost:8545", " polygon = http://localhost:8546 ", ""})
	if err != nil {
		t.Fatal(err)
	}
	want := map[assets.BlockchainType]string{
		assets.Ethereum: "http://localhost:8545",
		assets.Polygon:  "http://localhost:8546",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected urls (-want +got):\n%s", diff)
	}

	for _, invalid := range [][]string{
		{"ethereum"},
		{"bitcoin=http://localhost:8332"},
		{"ethereum=http://a", "ethereum=http://b"},
	} {
		if _, err := ParseRPCURLs(invalid); err == nil {
			t.Fatalf("expected an error for %v", invalid)
		}
	}
}
