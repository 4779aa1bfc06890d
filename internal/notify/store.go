package notify

import (
	"sync"

	"github.com/classbridge/chatkit/internal/domain"
)

// Store maps group id to unread state for the whole session. The
// notification client is its only writer; UI regions read it. Flags are
// never set for the group currently on screen.
type Store struct {
	onChange func()

	mu       sync.RWMutex
	activeID int
	groups   map[int]domain.GroupNotificationState
}

func NewStore(onChange func()) *Store {
	return &Store{
		onChange: onChange,
		groups:   make(map[int]domain.GroupNotificationState),
	}
}

// SetActiveGroupID records which group is on screen. Zero means none.
func (s *Store) SetActiveGroupID(id int) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
}

func (s *Store) ActiveGroupID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ClearGroupNotification drops the entry for a group entirely, used when
// the user opens that group.
func (s *Store) ClearGroupNotification(id int) {
	s.mu.Lock()
	_, existed := s.groups[id]
	delete(s.groups, id)
	s.mu.Unlock()

	if existed {
		s.notify()
	}
}

// HasAnyNotifications reports whether any group carries an unread flag,
// feeding the global indicator.
func (s *Store) HasAnyNotifications() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.groups {
		if state.Any() {
			return true
		}
	}
	return false
}

// Group returns the unread state for one group.
func (s *Store) Group(id int) (domain.GroupNotificationState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.groups[id]
	return state, ok
}

// Snapshot copies the whole map for rendering.
func (s *Store) Snapshot() map[int]domain.GroupNotificationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]domain.GroupNotificationState, len(s.groups))
	for id, state := range s.groups {
		out[id] = state
	}
	return out
}

type flag int

const (
	flagMessage flag = iota
	flagPoll
	flagFile
)

// mark merges one flag for a group, suppressed while that group is active.
func (s *Store) mark(groupID int, f flag) {
	s.mu.Lock()
	if groupID == s.activeID {
		s.mu.Unlock()
		return
	}
	state := s.groups[groupID]
	switch f {
	case flagMessage:
		state.HasMessage = true
	case flagPoll:
		state.HasPoll = true
	case flagFile:
		state.HasFile = true
	}
	s.groups[groupID] = state
	s.mu.Unlock()

	s.notify()
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
