package core

import "github.com/dkeye/peercall/internal/domain"

type session struct {
	id   domain.ConnectionID
	user domain.LogicalUserID
	sig  SignalConnection
}

func NewSession(id domain.ConnectionID, user domain.LogicalUserID, sig SignalConnection) Session {
	return &session{id: id, user: user, sig: sig}
}

func (s *session) ID() domain.ConnectionID    { return s.id }
func (s *session) User() domain.LogicalUserID { return s.user }
func (s *session) Signal() SignalConnection   { return s.sig }
