package pixels

import (
	"sync"
	"sync/atomic"
)

type leaseMode uint8

const (
	modeNone leaseMode = iota
	modeShared
	modeExclusive
)

// Guard arbitrates the views handed out for one buffer: any number of shared
// views, or exactly one mutable view, never both. Switching modes revokes
// every lease issued before the switch.
//
// The zero value is ready to use. A Guard must not be copied after first use.
type Guard struct {
	mu    sync.Mutex
	epoch atomic.Uint64
	mode  leaseMode
}

// Shared returns a lease for a read-only view. An outstanding exclusive
// lease is revoked; other shared leases stay valid.
func (g *Guard) Shared() Lease {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode != modeShared {
		g.epoch.Add(1)
		g.mode = modeShared
	}
	return Lease{g: g, epoch: g.epoch.Load()}
}

// Exclusive returns a lease for a mutable view and revokes every earlier lease.
func (g *Guard) Exclusive() Lease {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch.Add(1)
	g.mode = modeExclusive
	return Lease{g: g, epoch: g.epoch.Load()}
}

// Revoke invalidates every lease. Used when the buffer is released or handed
// to native code for writing.
func (g *Guard) Revoke() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch.Add(1)
	g.mode = modeNone
}

// Lease ties a view to the Guard that issued it.
// The zero Lease is unguarded and always valid.
type Lease struct {
	g     *Guard
	epoch uint64
}

// Valid reports whether the lease has not been revoked.
func (l Lease) Valid() bool {
	return l.g == nil || l.g.epoch.Load() == l.epoch
}
