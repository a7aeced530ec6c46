package auth

import "sync"

// Session is the mutable login state of a client process.
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != ""
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Login validates token and records its user.
func (s *Session) Login(token string, secretKey []byte) (string, error) {
	uid, err := GetUserIDFromToken(token, secretKey)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.userID, s.token = uid, token
	s.mu.Unlock()
	return uid, nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.userID, s.token = "", ""
	s.mu.Unlock()
}
