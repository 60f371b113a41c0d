package storage

import (
	"sync"

	EventBus "github.com/asaskevich/EventBus"
)

// TopicSessionChanged carries a single bool: whether a token is now present.
// The Store is its only publisher.
const TopicSessionChanged = "session:changed"

// Session is the read-only authentication state handed to components that
// need it, instead of each of them polling the store.
type Session struct {
	mu        sync.RWMutex
	authed    bool
	listeners []func(bool)
}

func newSession(bus EventBus.Bus, authed bool) *Session {
	s := &Session{authed: authed}
	_ = bus.Subscribe(TopicSessionChanged, s.update)
	return s
}

func (s *Session) update(authed bool) {
	s.mu.Lock()
	changed := s.authed != authed
	s.authed = authed
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(authed)
	}
}

// Authenticated reports the last published state.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

// OnChange registers fn to run whenever the state flips.
func (s *Session) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
