package identity

import "sync"

// Source supplies the current user id and notifies on sign-in/sign-out.
// Identity itself (login, sessions, verification) is owned elsewhere; this
// is the only slice of it the messaging core consumes.
type Source interface {
	// CurrentUserID returns the signed-in user id, or "" when signed out.
	CurrentUserID() string
	// OnChange registers fn to run on every identity change. The returned
	// function removes the registration.
	OnChange(fn func(userID string)) (remove func())
}

// Static is a settable in-process Source, used by tooling and tests.
type Static struct {
	mu        sync.Mutex
	userID    string
	listeners map[int]func(string)
	nextID    int
}

func NewStatic(userID string) *Static {
	return &Static{userID: userID, listeners: make(map[int]func(string))}
}

func (s *Static) CurrentUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Set changes the identity and notifies listeners. Setting "" is sign-out.
func (s *Static) Set(userID string) {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	listeners := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(userID)
	}
}

func (s *Static) OnChange(fn func(userID string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
