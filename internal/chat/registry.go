package chat

// Connection registry: the connection id -> User side of State. "Not
// found" is an empty result, never an error.

// Bind records the association between u.ConnID and u, returning the prior
// binding if one existed. Join transitions use the prior binding to detect
// a room switch.
func (s *State) Bind(u User) (prev User, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, replaced = s.users[u.ConnID]
	s.users[u.ConnID] = u
	return prev, replaced
}

// Unbind removes and returns the user bound to connID.
func (s *State) Unbind(connID string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[connID]
	if ok {
		delete(s.users, connID)
	}
	return u, ok
}

// Lookup returns the user bound to connID without mutating anything.
func (s *State) Lookup(connID string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[connID]
	return u, ok
}
