package chat

import (
	"sort"
	"sync"
	"time"
)

const typingTTL = 3 * time.Second

// TypingSet tracks who is typing in the active group. An entry expires
// after a quiet window from that user's last typing event; every new event
// restarts the window.
type TypingSet struct {
	ttl      time.Duration
	onChange func()

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTypingSet(ttl time.Duration, onChange func()) *TypingSet {
	if ttl <= 0 {
		ttl = typingTTL
	}
	return &TypingSet{
		ttl:      ttl,
		onChange: onChange,
		timers:   make(map[string]*time.Timer),
	}
}

func (ts *TypingSet) Add(name string) {
	ts.mu.Lock()
	if t, ok := ts.timers[name]; ok {
		t.Reset(ts.ttl)
		ts.mu.Unlock()
		return
	}
	ts.timers[name] = time.AfterFunc(ts.ttl, func() { ts.expire(name) })
	ts.mu.Unlock()

	ts.notify()
}

func (ts *TypingSet) expire(name string) {
	ts.mu.Lock()
	delete(ts.timers, name)
	ts.mu.Unlock()

	ts.notify()
}

// Names returns the current members in stable order.
func (ts *TypingSet) Names() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	names := make([]string, 0, len(ts.timers))
	for name := range ts.timers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop cancels all expiry timers. Used on view teardown.
func (ts *TypingSet) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for name, t := range ts.timers {
		t.Stop()
		delete(ts.timers, name)
	}
}

func (ts *TypingSet) notify() {
	if ts.onChange != nil {
		ts.onChange()
	}
}
