package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/docs-assistant/backend/internal/service/dispatch"
)

var (
	// ErrEmptyInput rejects blank submissions; the transcript is untouched.
	ErrEmptyInput = errors.New("message text is empty")
	// ErrBusy rejects submissions while a reply is pending; nothing is queued.
	ErrBusy = dispatch.ErrBusy
	// ErrConversationClosed rejects submissions after the session ended.
	ErrConversationClosed = errors.New("conversation closed")
)

// State is the controller state of a Conversation.
type State int

const (
	Idle State = iota
	Awaiting
)

func (s State) String() string {
	if s == Awaiting {
		return "awaiting"
	}
	return "idle"
}

// Dispatcher starts one asynchronous reply computation.
type Dispatcher interface {
	Dispatch(ctx context.Context, userText string) (<-chan dispatch.Result, error)
}

// EventType tags transcript notifications.
type EventType string

const (
	EventMessage EventType = "message"
	EventState   EventType = "state"
)

// Event notifies subscribers that a message was appended or the busy flag changed.
type Event struct {
	Type    EventType     `json:"type"`
	Message *chat.Message `json:"message,omitempty"`
	Busy    bool          `json:"busy"`
}

const subscriberBuffer = 64

// Conversation drives one transcript through the Idle -> Awaiting -> Idle
// cycle. It owns the transcript and the busy state; Submit is the only
// mutating entry point.
type Conversation struct {
	transcript *Transcript
	dispatcher Dispatcher
	apology    string
	logger     *zap.Logger

	mu      sync.Mutex
	state   State
	subs    map[int]chan Event
	nextSub int
	closed  bool

	pending sync.WaitGroup
}

// NewConversation seeds a transcript with greeting. apology is appended in
// place of a reply whenever a dispatch fails.
func NewConversation(greeting, apology string, dispatcher Dispatcher, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		transcript: NewTranscript(greeting),
		dispatcher: dispatcher,
		apology:    apology,
		logger:     logger,
		subs:       make(map[int]chan Event),
	}
}

// Transcript returns the ordered messages exchanged so far.
func (c *Conversation) Transcript() []chat.Message {
	return c.transcript.Snapshot()
}

// Busy reports whether a reply is pending.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Awaiting
}

// State returns the current controller state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit appends the user's text and starts a reply. It returns immediately;
// the reply lands in the transcript once the dispatch settles. Blank text
// yields ErrEmptyInput, a pending reply yields ErrBusy and a closed
// conversation yields ErrConversationClosed, all without any change to the
// conversation.
func (c *Conversation) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConversationClosed
	}
	if c.state == Awaiting {
		return ErrBusy
	}

	userMsg := c.transcript.Append(chat.SenderUser, text)
	c.state = Awaiting
	c.publish(Event{Type: EventMessage, Message: &userMsg, Busy: true})
	c.publish(Event{Type: EventState, Busy: true})

	results, err := c.dispatcher.Dispatch(ctx, text)
	if err != nil {
		c.logger.Warn("dispatch rejected, replying with apology", zap.Error(err))
		c.settleLocked(c.apology)
		return nil
	}

	c.pending.Add(1)
	go c.await(results)
	return nil
}

func (c *Conversation) await(results <-chan dispatch.Result) {
	defer c.pending.Done()

	res, ok := <-results
	text := res.Text
	switch {
	case !ok:
		c.logger.Warn("dispatch closed without a result")
		text = c.apology
	case res.Err != nil:
		c.logger.Warn("dispatch failed", zap.Error(res.Err))
		text = c.apology
	}

	c.mu.Lock()
	c.settleLocked(text)
	c.mu.Unlock()
}

// settleLocked appends the bot message and returns to Idle. c.mu must be held.
func (c *Conversation) settleLocked(text string) {
	botMsg := c.transcript.Append(chat.SenderBot, text)
	c.state = Idle
	c.publish(Event{Type: EventMessage, Message: &botMsg})
	c.publish(Event{Type: EventState})
}

// Wait blocks until every accepted dispatch has settled.
func (c *Conversation) Wait() {
	c.pending.Wait()
}

// Subscribe registers for transcript events. The returned cancel func
// unregisters and closes the channel. Events are dropped for a subscriber
// whose buffer is full; it can resynchronise from Transcript.
func (c *Conversation) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close ends every subscription and rejects further submissions. Pending
// dispatches still settle.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// publish must be called with c.mu held so events keep transcript order.
func (c *Conversation) publish(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("subscriber buffer full, dropping event", zap.String("type", string(ev.Type)))
		}
	}
}
