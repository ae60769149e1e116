// Package wallets maintains the set of enabled (account, asset) pairs and
// the live set of wallets of the active account.
package wallets

import (
	"fmt"
	"strings"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
)

// Key is the identity of a wallet.
type Key struct {
	TokenQueryID string
	AccountID    string
}

// String returns "tokenQueryID@accountID".
func (k Key) String() string {
	return k.TokenQueryID + "@" + k.AccountID
}

func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("invalid wallet id %q", s)
	}
	if _, err := assets.ParseTokenQuery(s[:i]); err != nil {
		return Key{}, err
	}
	return Key{TokenQueryID: s[:i], AccountID: s[i+1:]}, nil
}

// Wallet pairs an account with an asset. Two wallets are equal iff their
// keys are equal.
type Wallet struct {
	Token   assets.Token
	Account accounts.Account
}

func New(token assets.Token, account accounts.Account) Wallet {
	return Wallet{Token: token, Account: account}
}

func (w Wallet) Key() Key {
	return Key{TokenQueryID: w.Token.Query.ID(), AccountID: w.Account.ID}
}

func (w Wallet) Equal(o Wallet) bool {
	return w.Key() == o.Key()
}

func (w Wallet) Blockchain() assets.BlockchainType {
	return w.Token.Blockchain()
}

func (w Wallet) String() string {
	return w.Key().String()
}

// Keys returns the keys of ww in order.
func Keys(ww []Wallet) []Key {
	kk := make([]Key, len(ww))
	for i, w := range ww {
		kk[i] = w.Key()
	}
	return kk
}
