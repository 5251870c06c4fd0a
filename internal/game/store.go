package game

import "sort"

// Store is the process-wide session table. It is built at service start,
// handed to the Engine, and discarded at shutdown; nothing survives a restart.
type Store struct {
	sessions map[string]*Session
	members  map[string]string // connection id -> session code
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		members:  make(map[string]string),
	}
}

// Get returns the live session for code.
func (s *Store) Get(code string) (*Session, bool) {
	sess, ok := s.sessions[code]
	return sess, ok
}

// Has reports whether code is assigned to a live session.
func (s *Store) Has(code string) bool {
	_, ok := s.sessions[code]
	return ok
}

// SessionOf returns the session conn is seated in, if any.
func (s *Store) SessionOf(conn string) (*Session, bool) {
	code, ok := s.members[conn]
	if !ok {
		return nil, false
	}
	sess, ok := s.sessions[code]
	return sess, ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return len(s.sessions)
}

// Members returns the number of seated connections across all sessions.
func (s *Store) Members() int {
	return len(s.members)
}

// Snapshot returns detached views of every live session ordered by code.
func (s *Store) Snapshot() []SessionView {
	out := make([]SessionView, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.View())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Code < out[j].Code
	})
	return out
}

// Reset drops every session. Used at shutdown.
func (s *Store) Reset() {
	s.sessions = make(map[string]*Session)
	s.members = make(map[string]string)
}

func (s *Store) put(sess *Session) {
	s.sessions[sess.Code] = sess
	for _, p := range sess.Players {
		s.members[p.ConnectionID] = sess.Code
	}
}

func (s *Store) seat(conn string, sess *Session) {
	s.members[conn] = sess.Code
}

func (s *Store) unseat(conn string) {
	delete(s.members, conn)
}

func (s *Store) remove(code string) {
	sess, ok := s.sessions[code]
	if !ok {
		return
	}
	for _, p := range sess.Players {
		delete(s.members, p.ConnectionID)
	}
	delete(s.sessions, code)
}
