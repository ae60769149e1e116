package assets

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTokenQuery = errors.New("invalid token query")

// BlockchainType identifies the chain an asset lives on.
type BlockchainType string

const (
	Bitcoin           BlockchainType = "bitcoin"
	BitcoinCash       BlockchainType = "bitcoin-cash"
	Litecoin          BlockchainType = "litecoin"
	Dash              BlockchainType = "dash"
	Zcash             BlockchainType = "zcash"
	Ethereum          BlockchainType = "ethereum"
	BinanceSmartChain BlockchainType = "binance-smart-chain"
	Polygon           BlockchainType = "polygon"
	Avalanche         BlockchainType = "avalanche"
	Optimism          BlockchainType = "optimistic-ethereum"
	ArbitrumOne       BlockchainType = "arbitrum-one"
	Flow              BlockchainType = "flow"
	Solana            BlockchainType = "solana"
	Tron              BlockchainType = "tron"
)

// IsEvm reports whether the chain is served by an EVM node.
func (b BlockchainType) IsEvm() bool {
	switch b {
	case Ethereum, BinanceSmartChain, Polygon, Avalanche, Optimism, ArbitrumOne:
		return true
	}
	return false
}

type TokenKind string

const (
	Native TokenKind = "native"
	Eip20  TokenKind = "eip20"
	Bep2   TokenKind = "bep2"
	Spl    TokenKind = "spl"
	// Unsupported keeps unknown token types addressable.
	Unsupported TokenKind = "unsupported"
)

// TokenType is the token/contract sub-type of an asset on a chain.
type TokenType struct {
	Kind      TokenKind
	Reference string // contract address, symbol or mint, empty for native
}

func NativeToken() TokenType {
	return TokenType{Kind: Native}
}

func (t TokenType) ID() string {
	if t.Reference == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.Reference
}

func ParseTokenType(id string) (TokenType, error) {
	kind, ref, _ := strings.Cut(id, ":")
	switch TokenKind(kind) {
	case Native:
		if ref != "" {
			return TokenType{}, fmt.Errorf("%w: native token with reference %q", ErrInvalidTokenQuery, ref)
		}
		return NativeToken(), nil
	case Eip20:
		return TokenType{Kind: Eip20, Reference: strings.ToLower(ref)}, nil
	case Bep2, Spl:
		return TokenType{Kind: TokenKind(kind), Reference: ref}, nil
	case "":
		return TokenType{}, fmt.Errorf("%w: empty token type", ErrInvalidTokenQuery)
	default:
		return TokenType{Kind: Unsupported, Reference: id}, nil
	}
}

// TokenQuery is the asset specification: chain plus token sub-type.
type TokenQuery struct {
	BlockchainType BlockchainType
	TokenType      TokenType
}

// ID returns the stable asset identifier "blockchain|tokentype".
func (q TokenQuery) ID() string {
	return string(q.BlockchainType) + "|" + q.TokenType.ID()
}

func (q TokenQuery) String() string {
	return q.ID()
}

func ParseTokenQuery(id string) (TokenQuery, error) {
	chain, tt, ok := strings.Cut(id, "|")
	if !ok || chain == "" {
		return TokenQuery{}, fmt.Errorf("%w: %q", ErrInvalidTokenQuery, id)
	}
	tokenType, err := ParseTokenType(tt)
	if err != nil {
		return TokenQuery{}, err
	}
	return TokenQuery{BlockchainType: BlockchainType(chain), TokenType: tokenType}, nil
}

// Token is a fully resolved asset.
type Token struct {
	Query    TokenQuery
	Name     string
	Code     string
	Decimals int
	Icon     string
}

func (t Token) Blockchain() BlockchainType {
	return t.Query.BlockchainType
}
