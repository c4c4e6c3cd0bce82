// Package wallet is the boundary to the external wallet/network layer.
// The coordinator never talks to a key store directly; it sees only
// this interface.
package wallet

import "context"

// Wallet exposes the account and network operations the client consumes
// from the wallet layer.
type Wallet interface {
	// RequestAccounts asks the wallet to authorize accounts for this
	// client. The first returned account becomes the active account.
	RequestAccounts(ctx context.Context) ([]string, error)

	// ChainID reports the wallet's active network.
	ChainID(ctx context.Context) (string, error)

	// SwitchChain asks the wallet to move to the given network. An
	// error means the wallet (or its user) declined.
	SwitchChain(ctx context.Context, chainID string) error

	// OnAccountsChanged registers a callback for external account
	// changes (switch, disconnect). The returned function removes the
	// subscription.
	OnAccountsChanged(fn func(accounts []string)) (unsubscribe func())
}
