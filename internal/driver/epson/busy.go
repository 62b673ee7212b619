// internal/driver/epson/busy.go
package epson

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"projector-service/pkg/driver"
)

// BusyLock admits one operation at a time and never queues.
type BusyLock struct {
	held     atomic.Bool
	label    atomic.String
	observer driver.BusyObserver
}

// NewBusyLock creates a lock; observer may be nil
func NewBusyLock(observer driver.BusyObserver) *BusyLock {
	return &BusyLock{observer: observer}
}

// TryAcquire takes the lock for label or fails with ErrBusy naming the
// current holder. The returned release func is safe to call more than once.
func (l *BusyLock) TryAcquire(label string) (func(), error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %q in flight", ErrBusy, l.label.Load())
	}
	l.label.Store(label)
	l.notify(true, label)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.label.Store("")
			l.held.Store(false)
			l.notify(false, label)
		})
	}, nil
}

// Held reports whether an operation is in flight
func (l *BusyLock) Held() bool {
	return l.held.Load()
}

// Label returns the id of the in-flight operation, if any
func (l *BusyLock) Label() string {
	return l.label.Load()
}

func (l *BusyLock) notify(busy bool, label string) {
	if l.observer != nil {
		l.observer(busy, label)
	}
}
