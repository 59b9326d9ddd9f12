// Package presence tracks who is typing in which chat. State is a debounce
// per (chat, user): every keystroke restarts the countdown, sending stops it
// immediately. All signals are advisory and lossy.
package presence

import (
	"sync"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/cache"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

// DefaultWindow is the inactivity window after which a typer goes idle.
const DefaultWindow = 3 * time.Second

// Event is a typing transition. Typing=false means the user went idle.
type Event struct {
	ChatID string
	UserID string
	Typing bool
}

type key struct {
	chatID string
	userID string
}

type entry struct {
	timer    *time.Timer
	deadline time.Time
}

// Tracker owns the debounce timers. A Redis mirror, when configured, lets
// other instances read the state; it is nil-safe and best-effort.
type Tracker struct {
	window time.Duration
	mirror *cache.TypingCache

	mu     sync.Mutex
	timers map[key]*entry
	closed bool

	events chan Event

	now func() time.Time
}

func NewTracker(mirror *cache.TypingCache, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window: window,
		mirror: mirror,
		timers: make(map[key]*entry),
		events: make(chan Event, 64),
		now:    time.Now,
	}
}

// Events delivers typing transitions. Lossy: slow consumers drop events
// rather than blocking the tracker.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// Touch records one input event. The first touch transitions the user to
// typing; every touch restarts the inactivity countdown.
func (t *Tracker) Touch(chatID, userID string) {
	k := key{chatID: chatID, userID: userID}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	e, typing := t.timers[k]
	deadline := t.now().Add(t.window)
	if typing {
		e.timer.Reset(t.window)
		e.deadline = deadline
	} else {
		t.timers[k] = &entry{
			timer:    time.AfterFunc(t.window, func() { t.expire(k) }),
			deadline: deadline,
		}
	}
	t.mu.Unlock()

	_ = t.mirror.SetTyping(chatID, userID, t.window)
	if !typing {
		t.emit(Event{ChatID: chatID, UserID: userID, Typing: true})
	}
}

// Stop transitions the user to idle immediately, e.g. when a message is
// sent. A no-op for users not currently typing.
func (t *Tracker) Stop(chatID, userID string) {
	k := key{chatID: chatID, userID: userID}

	t.mu.Lock()
	e, typing := t.timers[k]
	if typing {
		e.timer.Stop()
		delete(t.timers, k)
	}
	t.mu.Unlock()

	if typing {
		_ = t.mirror.ClearTyping(chatID, userID)
		t.emit(Event{ChatID: chatID, UserID: userID, Typing: false})
	}
}

// expire fires when the inactivity window elapses without a touch.
func (t *Tracker) expire(k key) {
	t.mu.Lock()
	_, typing := t.timers[k]
	if typing {
		delete(t.timers, k)
	}
	t.mu.Unlock()

	if typing {
		_ = t.mirror.ClearTyping(k.chatID, k.userID)
		t.emit(Event{ChatID: k.chatID, UserID: k.userID, Typing: false})
	}
}

func (t *Tracker) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
	}
}

// Typing returns this instance's live typing states for a chat.
func (t *Tracker) Typing(chatID string) []models.TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.TypingState
	for k, e := range t.timers {
		if k.chatID == chatID {
			out = append(out, models.TypingState{
				ChatID:    k.chatID,
				UserID:    k.userID,
				ExpiresAt: e.deadline,
			})
		}
	}
	return out
}

// Close stops every timer. Further touches are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for k, e := range t.timers {
		e.timer.Stop()
		delete(t.timers, k)
	}
	t.mu.Unlock()
}
