// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import "sync"

// table maps the integer handles the presentation engine sees to the
// driver objects behind them. Handle 0 is never issued.
type table[H ~uint64, V any] struct {
	mutex sync.Mutex
	next  H
	items map[H]V
}

func newTable[H ~uint64, V any]() *table[H, V] {
	return &table[H, V]{items: make(map[H]V)}
}

func (t *table[H, V]) put(v V) H {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.next++
	t.items[t.next] = v
	return t.next
}

// get returns the zero value for unknown handles, which for driver
// objects is their null handle.
func (t *table[H, V]) get(h H) V {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.items[h]
}

func (t *table[H, V]) lookup(h H) (V, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	v, ok := t.items[h]
	return v, ok
}

func (t *table[H, V]) take(h H) (V, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	v, ok := t.items[h]
	delete(t.items, h)
	return v, ok
}

func (t *table[H, V]) len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.items)
}

// drain empties the table, handing every entry to f.
func (t *table[H, V]) drain(f func(H, V)) {
	t.mutex.Lock()
	items := t.items
	t.items = make(map[H]V)
	t.mutex.Unlock()
	for h, v := range items {
		f(h, v)
	}
}
