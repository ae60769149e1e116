package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

var parsedERC20 abi.ABI

func init() {
	var err error
	if parsedERC20, err = abi.JSON(strings.NewReader(erc20ABI)); err != nil {
		panic(err)
	}
}

func (a *Adapter) tokenBalance(ctx context.Context) (*big.Int, error) {
	data, err := parsedERC20.Pack("balanceOf", a.address)
	if err != nil {
		return nil, fmt.Errorf("error while packing balanceOf: %w", err)
	}

	result, err := call(a.breaker, func() ([]byte, error) {
		return a.client.CallContract(ctx, ethereum.CallMsg{To: a.contract, Data: data}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("error while calling contract %s: %w", a.contract.Hex(), err)
	}

	// Contracts without code at the address answer with an empty result.
	if len(result) == 0 {
		return new(big.Int), nil
	}

	out, err := parsedERC20.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("error while unpacking balanceOf: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result %T", out[0])
	}
	return balance, nil
}

func isContractAddress(ref string) (common.Address, bool) {
	if !common.IsHexAddress(ref) {
		return common.Address{}, false
	}
	return common.HexToAddress(ref), true
}
