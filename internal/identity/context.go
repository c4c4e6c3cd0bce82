// Package identity owns the process-wide connection state: which
// account is authorized and which handles exist. Only the Monitor in
// this package mutates it; every other component gets read access.
package identity

import (
	"fmt"
	"sync"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// Context holds the read handle (created once, never torn down), the
// write handle and the active account. The write handle and account are
// set together and cleared together.
type Context struct {
	mu      sync.RWMutex
	read    gateway.ReadHandle
	write   gateway.WriteHandle
	account string
}

func newContext(read gateway.ReadHandle) *Context {
	return &Context{read: read}
}

// Read never fails once the process is up.
func (c *Context) Read() gateway.ReadHandle {
	return c.read
}

// Write returns the signing handle, or ledger.ErrUnauthorized when no
// account is connected.
func (c *Context) Write() (gateway.WriteHandle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.write == nil {
		return nil, fmt.Errorf("%w: connect a wallet first", ledger.ErrUnauthorized)
	}
	return c.write, nil
}

// Account reports the active account, if any.
func (c *Context) Account() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account, c.account != ""
}

func (c *Context) setAuthorized(account string, write gateway.WriteHandle) {
	c.mu.Lock()
	c.account = account
	c.write = write
	c.mu.Unlock()
}

func (c *Context) clearAuthorized() {
	c.mu.Lock()
	c.account = ""
	c.write = nil
	c.mu.Unlock()
}
