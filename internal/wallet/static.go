package wallet

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// Static is a headless wallet pinned to one pre-authorized account and
// chain, for daemons that run with server-side credentials instead of
// an interactive wallet. It never emits account-change events.
type Static struct {
	account string
	chainID string
}

func NewStatic(account, chainID string) *Static {
	return &Static{account: account, chainID: chainID}
}

func (s *Static) RequestAccounts(ctx context.Context) ([]string, error) {
	if s.account == "" {
		return nil, nil
	}
	return []string{s.account}, nil
}

func (s *Static) ChainID(ctx context.Context) (string, error) {
	return s.chainID, nil
}

func (s *Static) SwitchChain(ctx context.Context, chainID string) error {
	if chainID == s.chainID {
		return nil
	}
	return fmt.Errorf("%w: static wallet is pinned to chain %s", ledger.ErrWrongNetwork, s.chainID)
}

func (s *Static) OnAccountsChanged(fn func(accounts []string)) func() {
	return func() {}
}
