package link

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// EventType is the kind of peer event delivered by the BLE stack.
type EventType int

const (
	EventConnected EventType = iota + 1
	EventDisconnected
	EventDescriptorWrite
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventDescriptorWrite:
		return "DESCRIPTOR_WRITE"
	default:
		return "UNKNOWN"
	}
}

// Event is a single peer event.
type Event struct {
	Type EventType
	Time time.Time

	// Char and Value are set for EventDescriptorWrite.
	Char  CharID
	Value []byte
}

// Mailbox is a bounded queue between the BLE stack callbacks and the
// app goroutine. Post never blocks.
//
// Connection edges are never lost. When the mailbox is full an incoming
// descriptor write is dropped, while an incoming connection edge evicts
// the oldest queued descriptor write. A mailbox holding nothing but edges
// is collapsed to its net effect: a disconnect if any was queued, then
// the final connection state.
type Mailbox struct {
	mu      sync.Mutex
	size    int
	queue   []Event
	dropped atomic.Uint64
}

// NewMailbox returns a Mailbox holding at most size pending events. The
// size is raised to 2, the room a collapsed edge sequence needs.
func NewMailbox(size int) *Mailbox {
	size = max(size, 2)
	return &Mailbox{size: size, queue: make([]Event, 0, size)}
}

// Post enqueues ev. It returns false and counts the event as dropped when
// ev itself could not be queued. Events evicted to make room for ev are
// counted as dropped too.
func (m *Mailbox) Post(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) < m.size {
		m.queue = append(m.queue, ev)
		return true
	}
	if ev.Type == EventDescriptorWrite {
		m.dropped.Add(1)
		return false
	}
	if i := slices.IndexFunc(m.queue, isWrite); i >= 0 {
		m.queue = slices.Delete(m.queue, i, i+1)
		m.dropped.Add(1)
		m.queue = append(m.queue, ev)
		return true
	}
	before := len(m.queue) + 1
	m.queue = collapseEdges(append(m.queue, ev))
	m.dropped.Add(uint64(before - len(m.queue)))
	return true
}

func isWrite(ev Event) bool { return ev.Type == EventDescriptorWrite }

// collapseEdges reduces a sequence of connection edges to at most two
// with the same effect on link state: the last disconnect, if any, then
// the final connect.
func collapseEdges(edges []Event) []Event {
	out := make([]Event, 0, 2)
	for i := len(edges) - 1; i >= 0; i-- {
		if edges[i].Type == EventDisconnected {
			out = append(out, edges[i])
			break
		}
	}
	if last := edges[len(edges)-1]; last.Type == EventConnected {
		out = append(out, last)
	}
	return out
}

// Drain calls fn for every event currently queued, oldest first, without
// waiting for more, and returns the number of events handled. fn runs
// without the mailbox lock held, so it may Post.
func (m *Mailbox) Drain(fn func(Event)) int {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return 0
	}
	pending := m.queue
	m.queue = make([]Event, 0, m.size)
	m.mu.Unlock()
	for _, ev := range pending {
		fn(ev)
	}
	return len(pending)
}

// Dropped returns the number of events lost to a full mailbox.
func (m *Mailbox) Dropped() uint64 { return m.dropped.Load() }
