// Package eventbus is an in-memory fanout for post lifecycle events.
//
// The notifier publishes; observability and the status log subscribe.
// Publish never blocks: a subscriber whose buffer is full misses the event
// and the miss is counted.
package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Post lifecycle event types.
const (
	PostQueued  = "post.queued"
	PostSent    = "post.sent"
	PostFailed  = "post.failed"
	PostDeduped = "post.deduped"
	PostDropped = "post.dropped"

	AnnounceRun   = "announce.run"
	AnnounceError = "announce.error"
	ReplySent     = "reply.sent"
)

// AnnounceEvent is the payload of announce.* events.
type AnnounceEvent struct {
	Feature string `json:"feature"`
	Error   string `json:"error,omitempty"`
}

// ReplyEvent is the payload of reply.sent.
type ReplyEvent struct {
	Acct     string `json:"acct"`
	StatusID string `json:"status_id"`
	Rule     string `json:"rule"`
	JobID    string `json:"job_id"`
}

type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	// Subscribe receives events whose type starts with one of prefixes, or
	// every event when none are given.
	Subscribe(buffer int, prefixes ...string) (ch <-chan Event, unsubscribe func())
}

// Emit publishes on a possibly nil bus.
func Emit(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}

type Mem struct {
	mu     sync.RWMutex
	subs   map[uint64]*sub
	seq    atomic.Uint64
	missed atomic.Uint64
}

type sub struct {
	ch       chan Event
	prefixes []string
}

func (s *sub) wants(typ string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

// New returns a bus that owns no goroutines.
func New() *Mem {
	return &Mem{subs: map[uint64]*sub{}}
}

func (b *Mem) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.missed.Add(1)
		}
	}
}

// Publish holds the read lock while sending, so unsubscribe (which takes the
// write lock) never closes a channel mid-send.
func (b *Mem) Subscribe(buffer int, prefixes ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer), prefixes: prefixes}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Missed counts events a full subscriber buffer did not take.
func (b *Mem) Missed() uint64 { return b.missed.Load() }
