package client

import (
	"sync"

	"creaverse/models"
)

// Session is the current signed-in user shared by every data-fetching call.
// Auth changes reach subscribers through SignIn and SignOut only.
type Session struct {
	mu     sync.RWMutex
	user   *models.User
	token  string
	nextID int
	subs   map[int]func(*models.User)
}

func NewSession() *Session {
	return &Session{subs: make(map[int]func(*models.User))}
}

// Current returns the signed-in user or nil.
func (s *Session) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) UserID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0, false
	}
	return s.user.ID, true
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe registers fn for auth changes and returns the unsubscribe func.
func (s *Session) Subscribe(fn func(*models.User)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) SignIn(user *models.User, token string) {
	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()
	s.emit(user)
}

func (s *Session) SignOut() {
	s.mu.Lock()
	wasSignedIn := s.user != nil || s.token != ""
	s.user = nil
	s.token = ""
	s.mu.Unlock()
	if wasSignedIn {
		s.emit(nil)
	}
}

// emit runs outside the lock so subscribers may call back into the session.
func (s *Session) emit(user *models.User) {
	s.mu.RLock()
	subs := make([]func(*models.User), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(user)
	}
}
