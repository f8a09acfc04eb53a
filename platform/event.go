// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package platform

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Post when the queue is at capacity.
var ErrQueueFull = errors.New("event queue full")

// Kind identifies an Event.
type Kind int

// Event kinds
const (
	Quit Kind = iota
	WindowResize
	WindowClose
	KeyPress
	KeyRelease
	// ResizeRequired is raised by the presentation engine when the
	// swapchain went stale.
	ResizeRequired
)

func (k Kind) String() string {
	switch k {
	case Quit:
		return "quit"
	case WindowResize:
		return "window resize"
	case WindowClose:
		return "window close"
	case KeyPress:
		return "key press"
	case KeyRelease:
		return "key release"
	case ResizeRequired:
		return "resize required"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a window system or engine notification. Width and Height
// are set for WindowResize, Key for KeyPress and KeyRelease.
type Event struct {
	Kind   Kind
	Width  uint32
	Height uint32
	Key    string
}

// Sink receives translated window events.
type Sink interface {
	Post(Event) error
}

// DefaultQueueSize is used by NewQueue for non positive capacities.
const DefaultQueueSize = 256

// Queue is a bounded FIFO of events, safe for concurrent use.
type Queue struct {
	log      logrus.FieldLogger
	mutex    sync.Mutex
	events   []Event
	capacity int
}

// NewQueue creates a Queue holding at most capacity events. log
// receives the resize requests the queue had to drop.
func NewQueue(capacity int, log logrus.FieldLogger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Queue{log: log, capacity: capacity}
}

// Post appends e, dropping it when the queue is full.
func (q *Queue) Post(e Event) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.push(e)
}

func (q *Queue) push(e Event) error {
	if len(q.events) >= q.capacity {
		return errors.Wrap(ErrQueueFull, e.Kind.String())
	}
	q.events = append(q.events, e)
	return nil
}

// Poll removes and returns the oldest event.
func (q *Queue) Poll() (Event, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

// Drain removes and returns every queued event in order.
func (q *Queue) Drain() []Event {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	events := q.events
	q.events = nil
	return events
}

// HasEvents reports whether Poll would return an event.
func (q *Queue) HasEvents() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.events) > 0
}

// ResizeRequired lets the queue stand in as the presentation engine's
// event sink. Repeated requests collapse into one queued event.
func (q *Queue) ResizeRequired() {
	q.mutex.Lock()
	err := q.requestResize()
	q.mutex.Unlock()
	if err != nil {
		q.log.WithError(err).Warn("resize request dropped")
	}
}

func (q *Queue) requestResize() error {
	for _, e := range q.events {
		if e.Kind == ResizeRequired {
			return nil
		}
	}
	return q.push(Event{Kind: ResizeRequired})
}
