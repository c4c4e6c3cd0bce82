package wallet

import (
	"context"
	"fmt"
	"sync"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// Fake is a scriptable wallet for tests: accounts and chain can be
// changed at any time and EmitAccountsChanged delivers the event to
// subscribers synchronously.
type Fake struct {
	mu          sync.Mutex
	accounts    []string
	chainID     string
	denySwitch  bool
	subscribers map[int]func([]string)
	nextSub     int
}

func NewFake(chainID string, accounts ...string) *Fake {
	return &Fake{
		accounts:    accounts,
		chainID:     chainID,
		subscribers: map[int]func([]string){},
	}
}

func (f *Fake) SetChainID(id string)   { f.mu.Lock(); f.chainID = id; f.mu.Unlock() }
func (f *Fake) DenySwitch(deny bool)   { f.mu.Lock(); f.denySwitch = deny; f.mu.Unlock() }
func (f *Fake) SetAccounts(a []string) { f.mu.Lock(); f.accounts = a; f.mu.Unlock() }

func (f *Fake) RequestAccounts(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.accounts...), nil
}

func (f *Fake) ChainID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
}

func (f *Fake) SwitchChain(ctx context.Context, chainID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denySwitch {
		return fmt.Errorf("%w: switch declined", ledger.ErrWrongNetwork)
	}
	f.chainID = chainID
	return nil
}

func (f *Fake) OnAccountsChanged(fn func(accounts []string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

// EmitAccountsChanged updates the account list and notifies subscribers,
// as an external account switch would.
func (f *Fake) EmitAccountsChanged(accounts []string) {
	f.mu.Lock()
	f.accounts = accounts
	subs := make([]func([]string), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(append([]string(nil), accounts...))
	}
}
