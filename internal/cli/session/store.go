package session

import "sync"

// UserProfile is the account record returned by GET /api/v1/users/me.
// Its shape belongs to the identity service; it is passed through untouched.
type UserProfile map[string]any

// ID returns the "id" attribute, or "" when absent.
func (p UserProfile) ID() string {
	return p.str("id")
}

// Email returns the "email" attribute, or "" when absent.
func (p UserProfile) Email() string {
	return p.str("email")
}

func (p UserProfile) str(key string) string {
	if p == nil {
		return ""
	}
	v, _ := p[key].(string)
	return v
}

// Session is the client-visible authentication state
type Session struct {
	Authenticated bool
	User          UserProfile
}

// Listener is called after every mutation with the new state
type Listener func(Session)

// Store holds the process session. The zero value is ready to use and
// represents {Authenticated: false, User: nil}.
type Store struct {
	mu        sync.RWMutex
	current   Session
	listeners []Listener
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{Authenticated: s.current.Authenticated, User: cloneProfile(s.current.User)}
}

// IsAuthenticated reports whether a session is currently known to exist
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Authenticated
}

// User returns a copy of the cached profile, nil when none is cached
func (s *Store) User() UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProfile(s.current.User)
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// SetAuthenticated updates the authentication flag and keeps the cached profile.
// Clearing the flag also drops the profile.
func (s *Store) SetAuthenticated(authenticated bool) {
	s.mu.Lock()
	s.current.Authenticated = authenticated
	if !authenticated {
		s.current.User = nil
	}
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, snap)
}

// SetUser replaces the cached profile
func (s *Store) SetUser(user UserProfile) {
	s.mu.Lock()
	s.current.User = cloneProfile(user)
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, snap)
}

// Clear resets the store to the initial unauthenticated state
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = Session{}
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, snap)
}

func (s *Store) snapshotLocked() (Session, []Listener) {
	snap := Session{Authenticated: s.current.Authenticated, User: cloneProfile(s.current.User)}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l != nil {
			listeners = append(listeners, l)
		}
	}
	return snap, listeners
}

func notify(listeners []Listener, snap Session) {
	for _, l := range listeners {
		l(snap)
	}
}

// cloneProfile is shallow; nested values are shared
func cloneProfile(p UserProfile) UserProfile {
	if p == nil {
		return nil
	}
	out := make(UserProfile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
