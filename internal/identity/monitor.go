package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/wallet"
)

// Monitor tracks the authorized account and the active network. It is
// the only writer of the connection Context: user connect/disconnect
// and external account-change events all funnel through here, so a
// user-initiated disconnect cannot race an in-flight wallet event.
type Monitor struct {
	wallet  wallet.Wallet
	factory gateway.Factory
	conn    *Context
	chainID string
	logger  *zap.Logger
}

func NewMonitor(w wallet.Wallet, f gateway.Factory, chainID string, logger *zap.Logger) *Monitor {
	return &Monitor{
		wallet:  w,
		factory: f,
		conn:    newContext(f.Read()),
		chainID: chainID,
		logger:  logger,
	}
}

// Context returns the connection state for read access.
func (m *Monitor) Context() *Context { return m.conn }

// Connect verifies the wallet is on the expected chain (asking it to
// switch once if not), requests account authorization and builds the
// write handle. The first authorized account becomes the active one.
func (m *Monitor) Connect(ctx context.Context) (string, error) {
	current, err := m.wallet.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: query chain id: %v", ledger.ErrUnavailable, err)
	}
	if current != m.chainID {
		if err := m.wallet.SwitchChain(ctx, m.chainID); err != nil {
			return "", fmt.Errorf("%w: on chain %s, expected %s", ledger.ErrWrongNetwork, current, m.chainID)
		}
	}

	accounts, err := m.wallet.RequestAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: request accounts: %v", ledger.ErrUnavailable, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("%w: wallet authorized no accounts", ledger.ErrUnauthorized)
	}

	account := accounts[0]
	write, err := m.factory.Write(account)
	if err != nil {
		return "", fmt.Errorf("bind write handle for %s: %w", account, err)
	}

	m.conn.setAuthorized(account, write)
	metrics.AccountConnected.Set(1)
	m.logger.Info("wallet connected", zap.String("account", account))
	return account, nil
}

// Disconnect clears the active account and write handle. The read path
// is unaffected.
func (m *Monitor) Disconnect() {
	m.conn.clearAuthorized()
	metrics.AccountConnected.Set(0)
	m.logger.Info("wallet disconnected")
}

// Watch subscribes to external account changes until ctx is cancelled.
func (m *Monitor) Watch(ctx context.Context) {
	unsubscribe := m.wallet.OnAccountsChanged(m.handleAccountsChanged)
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

// handleAccountsChanged applies an external account switch. It never
// blocks and never panics: losing the write handle is recoverable (the
// user reconnects), crashing the event path is not.
func (m *Monitor) handleAccountsChanged(accounts []string) {
	if len(accounts) == 0 {
		m.conn.clearAuthorized()
		metrics.AccountConnected.Set(0)
		m.logger.Info("accounts changed: none authorized, write path disabled")
		return
	}

	account := accounts[0]
	write, err := m.factory.Write(account)
	if err != nil {
		// Degrade to read-only rather than keeping a handle bound to
		// the previous account.
		m.conn.clearAuthorized()
		metrics.AccountConnected.Set(0)
		m.logger.Warn("accounts changed: write handle rebuild failed, degrading to read-only",
			zap.String("account", account), zap.Error(err))
		return
	}

	m.conn.setAuthorized(account, write)
	metrics.AccountConnected.Set(1)
	m.logger.Info("accounts changed: write handle rebound", zap.String("account", account))
}
