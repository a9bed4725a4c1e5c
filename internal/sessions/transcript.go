package sessions

import (
	"sync"

	"github.com/agrilens/agrilens/control-plane/pkg/models"
)

// Transcript is an append-only, thread-safe message log that supports
// real-time streaming to subscribers. Messages are never reordered or
// removed.
type Transcript struct {
	mu          sync.RWMutex
	messages    []models.ChatMessage
	subscribers map[chan models.ChatMessage]struct{}
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		subscribers: make(map[chan models.ChatMessage]struct{}),
	}
}

// Append adds a message and broadcasts it to all subscribers.
func (t *Transcript) Append(msg models.ChatMessage) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)

	// Broadcast to subscribers (non-blocking)
	for ch := range t.subscribers {
		select {
		case ch <- msg:
		default:
			// subscriber is too slow, it can resync from Messages
		}
	}
	t.mu.Unlock()
}

// Messages returns a copy of the transcript in insertion order.
func (t *Transcript) Messages() []models.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Subscribe returns a channel that receives new messages as they arrive.
// Call Unsubscribe when done to avoid leaks.
func (t *Transcript) Subscribe() chan models.ChatMessage {
	ch := make(chan models.ChatMessage, 64)
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it. Safe to call
// after CloseSubscribers.
func (t *Transcript) Unsubscribe(ch chan models.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subscribers[ch]; !ok {
		return
	}
	delete(t.subscribers, ch)
	close(ch)
}

// CloseSubscribers closes every subscriber channel, ending their streams.
func (t *Transcript) CloseSubscribers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.subscribers {
		delete(t.subscribers, ch)
		close(ch)
	}
}
