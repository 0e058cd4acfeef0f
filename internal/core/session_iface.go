package core

import "github.com/dkeye/peercall/internal/domain"

// Session binds one live connection to its transport endpoint and the logical
// user it authenticated as (possibly empty).
type Session interface {
	ID() domain.ConnectionID
	User() domain.LogicalUserID
	Signal() SignalConnection
}
