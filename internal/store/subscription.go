package store

import "sync"

// MessageSubscription delivers batches of message change events. Close
// releases the subscription and may be called any number of times.
type MessageSubscription struct {
	events    <-chan []MessageEvent
	closeOnce sync.Once
	closeFn   func()
}

func NewMessageSubscription(events <-chan []MessageEvent, closeFn func()) *MessageSubscription {
	return &MessageSubscription{events: events, closeFn: closeFn}
}

// Events is closed by the store when the subscription ends, either through
// Close or because the stream broke and the consumer must resubscribe.
func (s *MessageSubscription) Events() <-chan []MessageEvent {
	return s.events
}

func (s *MessageSubscription) Close() {
	s.closeOnce.Do(s.closeFn)
}

// ChatSubscription delivers batches of chat change events for one viewer.
type ChatSubscription struct {
	events    <-chan []ChatEvent
	closeOnce sync.Once
	closeFn   func()
}

func NewChatSubscription(events <-chan []ChatEvent, closeFn func()) *ChatSubscription {
	return &ChatSubscription{events: events, closeFn: closeFn}
}

func (s *ChatSubscription) Events() <-chan []ChatEvent {
	return s.events
}

func (s *ChatSubscription) Close() {
	s.closeOnce.Do(s.closeFn)
}
