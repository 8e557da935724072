package agentloop

import (
	"sync"

	"github.com/aagt-run/aagtcore/pkg/models"
)

// broadcastCap bounds each subscriber's event channel. A slow subscriber
// drops the oldest buffered event rather than stalling the loop — missing
// subscribers, or slow ones, are non-fatal to the run itself.
const broadcastCap = 1000

// Broadcaster fans a single stream of AgentEvents out to any number of
// subscribers, each on its own bounded, drop-oldest channel.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan models.AgentEvent]struct{}
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan models.AgentEvent]struct{})}
}

// Subscribe returns a channel that receives every event emitted after this
// call. Callers must call the returned cancel func to unsubscribe.
func (b *Broadcaster) Subscribe() (ch <-chan models.AgentEvent, cancel func()) {
	c := make(chan models.AgentEvent, broadcastCap)
	b.mu.Lock()
	b.subs[c] = struct{}{}
	b.mu.Unlock()

	return c, func() {
		b.mu.Lock()
		if _, ok := b.subs[c]; ok {
			delete(b.subs, c)
			close(c)
		}
		b.mu.Unlock()
	}
}

// emit delivers ev to every current subscriber. A full subscriber channel
// has its oldest pending event dropped to make room, rather than blocking
// the loop on a stalled reader.
func (b *Broadcaster) emit(ev models.AgentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.subs {
		select {
		case c <- ev:
		default:
			select {
			case <-c:
			default:
			}
			select {
			case c <- ev:
			default:
			}
		}
	}
}
