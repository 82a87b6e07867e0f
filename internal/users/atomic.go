package users

import "sync/atomic"

// atomicBool is a relaxed atomic boolean used for the dirty flag:
// clearing races with new mutations by design.
type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) set(val bool) { b.v.Store(val) }
func (b *atomicBool) get() bool    { return b.v.Load() }
