package chat

import (
	"go.uber.org/zap"

	"github.com/cropsentinel/advisor/backend/internal/model/chat"
)

// EventType names a change to a conversation.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
)

// Event is pushed to subscribers as the log changes.
type Event struct {
	Type    EventType     `json:"type"`
	Message *chat.Message `json:"message,omitempty"`
	Typing  bool          `json:"typing"`
	Pending int           `json:"pending"`
}

// Subscribe streams events for a conversation. The channel closes when the
// conversation closes or the returned cancel func runs.
func (s *Service) Subscribe(id string) (<-chan Event, func(), error) {
	_, events, cancel, err := s.Follow(id)
	return events, cancel, err
}

// Follow is Subscribe plus the log as of the moment of subscribing. Every
// turn is either in the returned transcript or delivered as an event, never both.
func (s *Service) Follow(id string) ([]chat.Message, <-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil, nil, ErrConversationNotFound
	}

	transcript := make([]chat.Message, len(conv.messages))
	copy(transcript, conv.messages)

	key := conv.nextSub
	conv.nextSub++
	ch := make(chan Event, subscriberBuffer)
	conv.subscribers[key] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := conv.subscribers[key]; ok {
			close(sub)
			delete(conv.subscribers, key)
		}
	}
	return transcript, ch, cancel, nil
}

func (s *Service) publishLocked(conv *conversation, evt Event) {
	for _, ch := range conv.subscribers {
		select {
		case ch <- evt:
		default:
			s.logger.Warn("subscriber lagging, event dropped",
				zap.String("conversation", conv.info.ID),
				zap.String("event", string(evt.Type)),
			)
		}
	}
}
