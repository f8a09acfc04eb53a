// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package resource tracks GPU side ownership and carries decoded
// payloads on their way to the device.
package resource

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrLeaked is returned by Ledger.Close when allocations outlived it.
var ErrLeaked = errors.New("allocations still live")

// Releasable is anything that owns memory it has to hand back.
type Releasable interface {
	Release()
}

// ID identifies an allocation within its Ledger.
type ID uint64

// Allocation is an opaque handle to memory held on behalf of a caller.
// Free hands the memory back to whoever made it, only the first call
// has an effect.
type Allocation struct {
	id     ID
	kind   string
	size   uint64
	ledger *Ledger

	once sync.Once
	free func()
}

// ID returns the allocation's identifier.
func (a *Allocation) ID() ID { return a.id }

// Kind is a free form label, like "depth".
func (a *Allocation) Kind() string { return a.kind }

// Size in bytes.
func (a *Allocation) Size() uint64 { return a.size }

// Free releases the allocation.
func (a *Allocation) Free() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		if a.free != nil {
			a.free()
		}
		if a.ledger != nil {
			a.ledger.forget(a.id)
		}
	})
}

// Release implements Releasable.
func (a *Allocation) Release() { a.Free() }

// Ledger keeps count of live allocations so teardown can report
// what was never freed.
type Ledger struct {
	log logrus.FieldLogger

	mutex sync.Mutex
	next  ID
	live  map[ID]*Allocation
	bytes uint64
}

// NewLedger creates an empty Ledger.
func NewLedger(log logrus.FieldLogger) *Ledger {
	if log == nil {
		log = logrus.New()
	}
	return &Ledger{
		log:  log,
		live: make(map[ID]*Allocation),
	}
}

// Track registers memory of the given size, free is called once when
// the returned Allocation is freed.
func (l *Ledger) Track(kind string, size uint64, free func()) *Allocation {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.next++
	a := &Allocation{
		id:     l.next,
		kind:   kind,
		size:   size,
		ledger: l,
		free:   free,
	}
	l.live[a.id] = a
	l.bytes += size
	return a
}

func (l *Ledger) forget(id ID) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if a, ok := l.live[id]; ok {
		l.bytes -= a.size
		delete(l.live, id)
	}
}

// Live returns the number of allocations not yet freed.
func (l *Ledger) Live() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.live)
}

// Bytes returns the total size of live allocations.
func (l *Ledger) Bytes() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.bytes
}

// Close frees everything still live, logging each leak.
func (l *Ledger) Close() error {
	l.mutex.Lock()
	leaked := make([]*Allocation, 0, len(l.live))
	for _, a := range l.live {
		leaked = append(leaked, a)
	}
	l.mutex.Unlock()

	for _, a := range leaked {
		l.log.WithFields(logrus.Fields{
			"id":   a.id,
			"kind": a.kind,
			"size": a.size,
		}).Warn("allocation leaked")
		a.Free()
	}
	if len(leaked) > 0 {
		return errors.Wrapf(ErrLeaked, "%d", len(leaked))
	}
	return nil
}
