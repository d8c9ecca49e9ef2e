package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	langdetect "github.com/cropsentinel/advisor/backend/internal/analysis/language"
	"github.com/cropsentinel/advisor/backend/internal/client/advisor"
	"github.com/cropsentinel/advisor/backend/internal/model/chat"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message is empty")
)

// Greeting seeds new conversations when enabled.
const Greeting = "Hello! I'm your AI assistant for agricultural challenges. How can I help you today? / ሰላም! እኔ የግብርና ችግሮች AI ረዳት ነኝ። ዛሬ እንዴት ልረዳዎት እችላለሁ?"

const subscriberBuffer = 32

// Options tunes a Service.
type Options struct {
	Greeting bool
	Logger   *zap.Logger
}

// Service keeps per-view conversation logs and pairs each user turn with
// exactly one bot turn.
type Service struct {
	detector  langdetect.Detector
	responder advisor.Responder
	greeting  bool
	logger    *zap.Logger

	mu            sync.RWMutex
	conversations map[string]*conversation
	workers       sync.WaitGroup
}

type conversation struct {
	info     chat.Conversation
	ctx      context.Context
	cancel   context.CancelFunc
	messages []chat.Message
	pending  int
	// tail is closed once the most recent submit has appended its bot turn.
	tail        chan struct{}
	subscribers map[int]chan Event
	nextSub     int
}

// NewService wires the conversation manager.
func NewService(detector langdetect.Detector, responder advisor.Responder, opts Options) *Service {
	if detector == nil {
		detector = langdetect.NewHeuristic()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		detector:      detector,
		responder:     responder,
		greeting:      opts.Greeting,
		logger:        logger.Named("chat"),
		conversations: make(map[string]*conversation),
	}
}

// Open starts a new conversation log.
func (s *Service) Open(_ context.Context) (chat.Conversation, error) {
	ctx, cancel := context.WithCancel(context.Background())
	conv := &conversation{
		info: chat.Conversation{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		},
		ctx:         ctx,
		cancel:      cancel,
		messages:    make([]chat.Message, 0, 16),
		subscribers: make(map[int]chan Event),
	}

	if s.greeting {
		conv.messages = append(conv.messages, chat.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.info.ID,
			Sender:         chat.SenderBot,
			Content:        Greeting,
			CreatedAt:      conv.info.CreatedAt,
		})
	}

	s.mu.Lock()
	s.conversations[conv.info.ID] = conv
	s.mu.Unlock()

	return conv.info, nil
}

// Get returns the conversation handle.
func (s *Service) Get(_ context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv.info, nil
}

// Submit appends the user turn synchronously and requests the bot turn in
// the background. Bot turns are appended in submit order even when replies
// arrive out of order.
func (s *Service) Submit(_ context.Context, id, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	code := s.detector.Detect(text)

	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return chat.Message{}, ErrConversationNotFound
	}

	userMsg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: id,
		Sender:         chat.SenderUser,
		Content:        text,
		Language:       code,
		CreatedAt:      time.Now().UTC(),
	}
	s.appendLocked(conv, userMsg)

	prev := conv.tail
	done := make(chan struct{})
	conv.tail = done
	conv.pending++
	s.publishLocked(conv, Event{Type: EventTyping, Typing: true, Pending: conv.pending})

	reqCtx := conv.ctx
	s.workers.Add(1)
	s.mu.Unlock()

	s.logger.Debug("user turn appended", zap.String("conversation", id), zap.String("language", code.String()))

	go s.awaitReply(reqCtx, conv, userMsg, prev, done)
	return userMsg, nil
}

func (s *Service) awaitReply(ctx context.Context, conv *conversation, userMsg chat.Message, prev <-chan struct{}, done chan struct{}) {
	defer s.workers.Done()
	defer close(done)

	reply := s.responder.Respond(ctx, userMsg.Content, userMsg.Language)
	if !reply.OK() {
		s.logger.Warn("using fallback reply",
			zap.String("conversation", userMsg.ConversationID),
			zap.String("failure", string(reply.Failure)),
			zap.Bool("transient", reply.Transient()),
		)
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		s.logger.Debug("dropping reply for closed conversation", zap.String("conversation", userMsg.ConversationID))
		return
	}

	s.appendLocked(conv, chat.Message{
		ID:             uuid.NewString(),
		ConversationID: userMsg.ConversationID,
		Sender:         chat.SenderBot,
		Content:        reply.Text,
		Language:       userMsg.Language,
		CreatedAt:      time.Now().UTC(),
	})
	conv.pending--
	s.publishLocked(conv, Event{Type: EventTyping, Typing: conv.pending > 0, Pending: conv.pending})
}

func (s *Service) appendLocked(conv *conversation, msg chat.Message) {
	conv.messages = append(conv.messages, msg)
	s.publishLocked(conv, Event{Type: EventMessage, Message: &msg})
}

// Transcript returns a copy of the conversation log.
func (s *Service) Transcript(_ context.Context, id string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}

	copied := make([]chat.Message, len(conv.messages))
	copy(copied, conv.messages)
	return copied, nil
}

// Typing reports whether any bot turn is still outstanding.
func (s *Service) Typing(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return false, ErrConversationNotFound
	}
	return conv.pending > 0, nil
}

// Close tears a conversation down. In-flight requests are cancelled and
// their replies dropped.
func (s *Service) Close(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	s.closeLocked(conv)
	return nil
}

func (s *Service) closeLocked(conv *conversation) {
	conv.cancel()
	for key, ch := range conv.subscribers {
		close(ch)
		delete(conv.subscribers, key)
	}
	delete(s.conversations, conv.info.ID)
}

// Shutdown closes every conversation and waits for outstanding replies.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, conv := range s.conversations {
		s.closeLocked(conv)
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
