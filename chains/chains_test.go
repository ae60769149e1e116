package chains

import (
	"context"
	"errors"
	"testing"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
)

const keyOne = "0x0000000000000000000000000000000000000000000000000000000000000001"

func TestRegistryDispatchesOnBlockchain(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := NewRegistry(WithLogger(logger))

	var created []assets.BlockchainType
	r.Register(assets.Ethereum, adapters.FactoryFunc(func(ctx context.Context, w wallets.Wallet) (adapters.Adapter, error) {
		created = append(created, w.Blockchain())
		return nil, errors.New("not needed")
	}))
	r.Register(assets.Flow, adapters.FactoryFunc(func(ctx context.Context, w wallets.Wallet) (adapters.Adapter, error) {
		return nil, nil
	}))

	eth := assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Ethereum, TokenType: assets.NativeToken()}}
	btc := assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Bitcoin, TokenType: assets.NativeToken()}}
	a := accounts.Account{ID: "x"}

	if _, err := r.Create(context.Background(), wallets.New(eth, a)); err == nil || err.Error() != "not needed" {
		t.Fatalf("expected factory error, got %v", err)
	}
	if _, err := r.Create(context.Background(), wallets.New(btc, a)); !errors.Is(err, ErrUnsupportedBlockchain) {
		t.Fatalf("expected ErrUnsupportedBlockchain, got %v", err)
	}

	if diff := cmp.Diff([]assets.BlockchainType{assets.Ethereum}, created); diff != "" {
		t.Fatalf("unexpected constructions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]assets.BlockchainType{assets.Ethereum, assets.Flow}, r.Blockchains()); diff != "" {
		t.Fatalf("unexpected blockchains (-want +got):\n%s", diff)
	}
}

func TestReceiveAddress(t *testing.T) {
	cases := []struct {
		name       string
		typ        accounts.Type
		blockchain assets.BlockchainType
		want       string
		wantErr    error
	}{
		{
			name:       "private key on evm chain",
			typ:        accounts.EvmPrivateKey{Key: keyOne},
			blockchain: assets.Polygon,
			want:       "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
		},
		{
			name:       "private key off evm",
			typ:        accounts.EvmPrivateKey{Key: keyOne},
			blockchain: assets.Flow,
			wantErr:    ErrUnsupportedAccountType,
		},
		{
			name:       "watch address on its chain",
			typ:        accounts.WatchAddress{Blockchain: assets.Flow, Address: "0xf8d6e0586b0a20c7"},
			blockchain: assets.Flow,
			want:       "0xf8d6e0586b0a20c7",
		},
		{
			name:       "evm watch address on another evm chain",
			typ:        accounts.WatchAddress{Blockchain: assets.Ethereum, Address: "0xabc"},
			blockchain: assets.ArbitrumOne,
			want:       "0xabc",
		},
		{
			name:       "watch address on another chain",
			typ:        accounts.WatchAddress{Blockchain: assets.Bitcoin, Address: "bc1q"},
			blockchain: assets.Litecoin,
			wantErr:    ErrUnsupportedAccountType,
		},
		{
			name:       "mnemonic",
			typ:        accounts.Mnemonic{Words: []string{"abandon"}},
			blockchain: assets.Ethereum,
			wantErr:    ErrUnsupportedAccountType,
		},
		{
			name:       "cex",
			typ:        accounts.Cex{Exchange: "binance"},
			blockchain: assets.Ethereum,
			wantErr:    ErrUnsupportedAccountType,
		},
		{
			name:       "no type",
			blockchain: assets.Ethereum,
			wantErr:    ErrUnsupportedAccountType,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ReceiveAddress(accounts.Account{ID: "x", Type: c.typ}, c.blockchain)
			if c.wantErr != nil {
				if !errors.Is(err, c.wantErr) {
					t.Fatalf("expected %v, got %v", c.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Fatalf("expected %s, got %s", c.want, got)
			}
		})
	}
}

func TestReceiveAddressRejectsInvalidKey(t *testing.T) {
	_, err := ReceiveAddress(accounts.Account{Type: accounts.EvmPrivateKey{Key: "nope"}}, assets.Ethereum)
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
}
