package pgstore

import (
	"log"
	"sync"

	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

// subscriber channels are buffered; a consumer that falls this far behind is
// dropped and must resubscribe, mirroring a broken stream.
const subscriberBuffer = 128

type messageSub struct {
	id     int
	chatID string
	ch     chan []store.MessageEvent
}

type chatSub struct {
	id     int
	userID string
	ch     chan []store.ChatEvent
}

// bus fans committed changes out to live subscriptions. It is in-process:
// every instance that writes also publishes, so a single-instance deployment
// sees all changes live while other instances rely on resubscribing.
type bus struct {
	mu       sync.Mutex
	msgSubs  map[int]*messageSub
	chatSubs map[int]*chatSub
	nextSub  int
}

func newBus() *bus {
	return &bus{
		msgSubs:  make(map[int]*messageSub),
		chatSubs: make(map[int]*chatSub),
	}
}

// addMessageSub registers a subscriber and queues its initial replay batch.
// The batch goes in under the lock so no publish can drop the sub first.
func (b *bus) addMessageSub(chatID string, initial []store.MessageEvent) *messageSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &messageSub{id: b.nextSub, chatID: chatID, ch: make(chan []store.MessageEvent, subscriberBuffer)}
	b.nextSub++
	b.msgSubs[sub.id] = sub
	sub.ch <- initial
	return sub
}

func (b *bus) dropMessageSub(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.msgSubs[id]; ok {
		delete(b.msgSubs, id)
		close(sub.ch)
	}
}

func (b *bus) addChatSub(userID string, initial []store.ChatEvent) *chatSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &chatSub{id: b.nextSub, userID: userID, ch: make(chan []store.ChatEvent, subscriberBuffer)}
	b.nextSub++
	b.chatSubs[sub.id] = sub
	sub.ch <- initial
	return sub
}

func (b *bus) dropChatSub(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.chatSubs[id]; ok {
		delete(b.chatSubs, id)
		close(sub.ch)
	}
}

// publish delivers events to matching subscribers. Sends and channel closes
// both happen under the lock so a drop never races a delivery. Slow
// subscribers are dropped so they resubscribe.
func (b *bus) publish(msgEvents []store.MessageEvent, chatEvents []store.ChatEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.msgSubs {
		var batch []store.MessageEvent
		for _, ev := range msgEvents {
			if ev.Message.ChatID == sub.chatID {
				batch = append(batch, ev)
			}
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case sub.ch <- batch:
		default:
			log.Printf("pgstore: dropping slow message subscriber for chat %s", sub.chatID)
			delete(b.msgSubs, id)
			close(sub.ch)
		}
	}
	for id, sub := range b.chatSubs {
		var batch []store.ChatEvent
		for _, ev := range chatEvents {
			if ev.Chat.HasParticipant(sub.userID) {
				batch = append(batch, ev)
			}
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case sub.ch <- batch:
		default:
			log.Printf("pgstore: dropping slow chat subscriber for user %s", sub.userID)
			delete(b.chatSubs, id)
			close(sub.ch)
		}
	}
}
