package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedFilter is returned by transaction adapters that cannot
// apply a requested filter.
var ErrUnsupportedFilter = errors.New("unsupported filter")

type FilterType string

const (
	FilterAll      FilterType = "all"
	FilterIncoming FilterType = "incoming"
	FilterOutgoing FilterType = "outgoing"
	FilterSwap     FilterType = "swap"
	FilterApprove  FilterType = "approve"
)

type LastBlockInfo struct {
	Height    uint64     `json:"height"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type TransactionRecord struct {
	UID         string          `json:"uid"`
	Hash        string          `json:"hash"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockHeight *uint64         `json:"blockHeight,omitempty"`
	Type        FilterType      `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Failed      bool            `json:"failed"`
}

// TransactionQuery selects a page of transaction records.
type TransactionQuery struct {
	// Records older than From, nil for the newest.
	From    *TransactionRecord
	Token   *assets.Token
	Limit   int
	Type    FilterType
	Address string
}

type TransactionsAdapter interface {
	TransactionsState() State
	SubscribeTransactionsState() *events.Subscription[State]

	LastBlockInfo() *LastBlockInfo
	SubscribeLastBlock() *events.Subscription[LastBlockInfo]

	Transactions(ctx context.Context, q TransactionQuery) ([]TransactionRecord, error)
	// SubscribeTransactionRecords delivers newly seen records matching q.
	SubscribeTransactionRecords(q TransactionQuery) (*events.Subscription[[]TransactionRecord], error)

	ExplorerURL(hash string) string
}
