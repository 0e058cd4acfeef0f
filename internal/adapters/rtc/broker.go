package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Offer is one SDP offer waiting for its answer.
type Offer struct {
	From  domain.TransportPeerID
	SDP   webrtc.SessionDescription
	reply chan webrtc.SessionDescription
}

// Reply hands the answer back to the dialer. It must be called once.
func (o Offer) Reply(answer webrtc.SessionDescription) {
	o.reply <- answer
}

// Exchanger carries SDP between two transport peers, out of band of the call
// signaling channel.
type Exchanger interface {
	Offer(ctx context.Context, from, to domain.TransportPeerID, sdp webrtc.SessionDescription) (webrtc.SessionDescription, error)
	Await(ctx context.Context, self, from domain.TransportPeerID) (Offer, error)
}

type pair struct{ to, from domain.TransportPeerID }

// Broker is an in-process Exchanger keyed by (answerer, dialer).
type Broker struct {
	mu    sync.Mutex
	boxes map[pair]chan Offer
}

func NewBroker() *Broker {
	return &Broker{boxes: make(map[pair]chan Offer)}
}

func (b *Broker) box(p pair) chan Offer {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.boxes[p]
	if !ok {
		ch = make(chan Offer, 1)
		b.boxes[p] = ch
	}
	return ch
}

// Offer posts sdp to the (to, from) mailbox and waits for the answer. An offer
// still unclaimed when ctx ends is taken back, so the next call between the
// same pair never awaits it.
func (b *Broker) Offer(ctx context.Context, from, to domain.TransportPeerID, sdp webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	o := Offer{From: from, SDP: sdp, reply: make(chan webrtc.SessionDescription, 1)}
	box := b.box(pair{to: to, from: from})
	select {
	case box <- o:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
	select {
	case answer := <-o.reply:
		return answer, nil
	case <-ctx.Done():
		withdraw(box, o)
		return webrtc.SessionDescription{}, ctx.Err()
	}
}

// withdraw removes o from box if nobody claimed it yet.
func withdraw(box chan Offer, o Offer) {
	select {
	case pending := <-box:
		if pending.reply == o.reply {
			return
		}
		select {
		case box <- pending:
		default:
		}
	default:
	}
}

func (b *Broker) Await(ctx context.Context, self, from domain.TransportPeerID) (Offer, error) {
	select {
	case o := <-b.box(pair{to: self, from: from}):
		return o, nil
	case <-ctx.Done():
		return Offer{}, ctx.Err()
	}
}

// Forget drops the mailboxes addressed to or sent by id.
func (b *Broker) Forget(id domain.TransportPeerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.boxes {
		if p.to == id || p.from == id {
			delete(b.boxes, p)
		}
	}
}
