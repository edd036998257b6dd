package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/docs-assistant/backend/internal/service/dispatch"
	"github.com/zhouzirui/docs-assistant/backend/internal/service/reply"
)

var ErrSessionNotFound = errors.New("session not found")

// Options configures the conversations a Service hands out.
type Options struct {
	Catalog     *catalog.Catalog
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	// Seed makes reply and latency draws reproducible when set.
	Seed   *uint64
	Logger *zap.Logger
}

type sessionEntry struct {
	session chat.Session
	conv    *Conversation
}

// Service hosts one Conversation per widget session, in memory only.
type Service struct {
	opts     Options
	matcher  *intent.Matcher
	selector *reply.Selector
	logger   *zap.Logger
	seq      atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewService validates opts by building a throwaway dispatcher so that bad
// delay or failure settings surface at startup.
func NewService(ctx context.Context, opts Options) (*Service, error) {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	selectorRand := reply.NewRand(uint64(time.Now().UnixNano()))
	if opts.Seed != nil {
		selectorRand = reply.NewRand(*opts.Seed)
	}

	s := &Service{
		opts:     opts,
		matcher:  intent.FromCatalog(opts.Catalog),
		selector: reply.NewSelector(opts.Catalog, selectorRand),
		logger:   logger,
		sessions: make(map[string]*sessionEntry),
	}

	if _, err := s.newDispatcher(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) newDispatcher(ctx context.Context) (*dispatch.Dispatcher, error) {
	cfg := dispatch.Config{
		MinDelay:    s.opts.MinDelay,
		MaxDelay:    s.opts.MaxDelay,
		FailureRate: s.opts.FailureRate,
		Logger:      s.logger.Named("dispatch"),
	}
	if s.opts.Seed != nil {
		cfg.Rand = reply.NewRand(*s.opts.Seed + s.seq.Add(1))
	}
	return dispatch.New(ctx, s.matcher, s.selector, cfg)
}

// NewConversation builds a standalone conversation with the service's
// settings, without registering a session.
func (s *Service) NewConversation(ctx context.Context) (*Conversation, error) {
	d, err := s.newDispatcher(ctx)
	if err != nil {
		return nil, err
	}
	return NewConversation(s.opts.Catalog.Greeting, s.opts.Catalog.Apology, d, s.logger.Named("conversation")), nil
}

// CreateSession provisions a conversation seeded with the greeting.
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	conv, err := s.NewConversation(ctx)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create conversation: %w", err)
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session, conv: conv}
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session_id", session.ID))
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return entry.session, nil
}

// Conversation returns the live conversation bound to sessionID.
func (s *Service) Conversation(sessionID string) (*Conversation, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.conv, nil
}

// LoadTranscript returns the messages of the session in order.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.conv.Transcript(), nil
}

// Submit forwards user text to the session's conversation.
func (s *Service) Submit(ctx context.Context, sessionID, text string) error {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return entry.conv.Submit(ctx, text)
}

// EndSession discards the conversation; nothing is persisted.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	entry.conv.Close()
	s.logger.Info("session ended", zap.String("session_id", sessionID))
	return nil
}

// Shutdown ends all sessions and waits for pending replies to settle or ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for id, entry := range s.sessions {
		entries = append(entries, entry)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, entry := range entries {
			entry.conv.Close()
			entry.conv.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lookup(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}
