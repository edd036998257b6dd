package chat

import (
	"sync"
	"time"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
)

// Transcript is the append-only message log of one conversation. IDs start
// at 1 with the seeded greeting and increase by one per append.
type Transcript struct {
	mu       sync.RWMutex
	messages []chat.Message
	lastID   int64
	now      func() time.Time
}

// NewTranscript returns a transcript holding only the bot greeting.
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{
		messages: make([]chat.Message, 0, 16),
		now:      func() time.Time { return time.Now().UTC() },
	}
	t.Append(chat.SenderBot, greeting)
	return t
}

// Append stores a new message and returns it with its assigned ID.
func (t *Transcript) Append(sender chat.Sender, text string) chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastID++
	msg := chat.Message{
		ID:        t.lastID,
		Text:      text,
		Sender:    sender,
		CreatedAt: t.now(),
	}
	t.messages = append(t.messages, msg)
	return msg
}

// Snapshot returns a copy of the messages in creation order.
func (t *Transcript) Snapshot() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]chat.Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// Len returns the number of stored messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
