package util

import "sync/atomic"

// AtomicBool is a flag safe to flip from one goroutine and observe from another.
type AtomicBool int32

func (b *AtomicBool) IsSet() bool { return atomic.LoadInt32((*int32)(b)) != 0 }
func (b *AtomicBool) Set()        { atomic.StoreInt32((*int32)(b), 1) }
func (b *AtomicBool) Unset()      { atomic.StoreInt32((*int32)(b), 0) }

// TrySet sets the flag and reports whether this call was the one that set it.
func (b *AtomicBool) TrySet() bool {
	return atomic.CompareAndSwapInt32((*int32)(b), 0, 1)
}
