package accounts

import (
	"github.com/flow-hydraulics/wallet-orchestrator/datastore"
)

// Store manages data regarding accounts and the active account of each
// level.
type Store interface {
	// List accounts with level >= minLevel.
	Accounts(minLevel int, o datastore.ListOptions) ([]AccountRecord, error)

	// Get account details.
	Account(id string) (AccountRecord, error)

	// Insert or replace an account. When activate is set the account also
	// becomes the active account of its level, in the same transaction.
	SaveAccount(r *AccountRecord, activate bool) error

	// Insert or replace accounts in one transaction without touching the
	// active accounts.
	ImportAccounts(rr []AccountRecord) error

	// Delete every account, their enabled wallets and the active account of
	// every level. Returns the deleted records and the levels that had an
	// active account.
	Clear() (deleted []AccountRecord, levels []int, err error)

	// Delete an account together with its enabled wallets. If it was the
	// active account of its level, the first remaining account of that level
	// becomes active. Returns the deleted record and whether the active
	// account of its level changed.
	DeleteAccount(id string) (deleted AccountRecord, activeChanged bool, err error)

	// ID of the active account of a level, empty if there is none.
	ActiveAccountID(level int) (string, error)

	// Set the active account of a level, an empty id clears it.
	SetActiveAccountID(level int, id string) error

	UpdateBackedUp(id string, isBackedUp, isFileBackedUp bool) error

	// Move accounts to another level. Levels that lose their active account
	// fall back to their first remaining account. Returns the affected levels.
	UpdateLevels(ids []string, level int) ([]int, error)
}
