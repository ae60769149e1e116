package wallets

// Store manages enabled wallet records.
type Store interface {
	// Enabled wallets of an account ordered by order hint.
	EnabledWallets(accountID string) ([]EnabledWallet, error)

	// Insert or update save and remove del in one transaction. New records
	// get an order hint greater than any existing hint of their account,
	// existing records keep theirs. Fails with accounts.ErrAccountNotFound
	// when a record belongs to an account that does not exist.
	HandleEnabledWallets(save []EnabledWallet, del []Key) error

	// Remove the records of all accounts.
	ClearEnabledWallets() error
}
