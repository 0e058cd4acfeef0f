package domain

// ParticipantRecord is the per-connection signaling state shared with every client
// through users-list broadcasts. InCall mirrors CallID != "".
type ParticipantRecord struct {
	Connection      ConnectionID    `json:"socketId"`
	TransportPeerID TransportPeerID `json:"peerId,omitempty"`
	InCall          bool            `json:"inCall"`
	CallID          CallID          `json:"callId,omitempty"`
}

// NewParticipant returns an idle record without a transport peer id.
func NewParticipant(conn ConnectionID) *ParticipantRecord {
	return &ParticipantRecord{Connection: conn}
}
