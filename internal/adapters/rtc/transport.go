package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/peercall/internal/client"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNotOpen = errors.New("transport not open")

// Transport is a pion-backed client.MediaTransport. Peers are addressed by a
// random transport peer id handed out by Open.
type Transport struct {
	cfg webrtc.Configuration
	ex  Exchanger

	mu sync.Mutex
	id domain.TransportPeerID
}

func NewTransport(cfg webrtc.Configuration, ex Exchanger) *Transport {
	return &Transport{cfg: cfg, ex: ex}
}

func (t *Transport) Open(context.Context) (domain.TransportPeerID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.id == "" {
		t.id = domain.TransportPeerID(uuid.NewString())
	}
	log.Info().Str("module", "rtc").Str("peer", string(t.id)).Msg("transport open")
	return t.id, nil
}

func (t *Transport) self() (domain.TransportPeerID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.id == "" {
		return "", ErrNotOpen
	}
	return t.id, nil
}

func (t *Transport) Dial(ctx context.Context, remote domain.TransportPeerID, media client.LocalMedia) (client.MediaSession, error) {
	self, err := t.self()
	if err != nil {
		return nil, err
	}
	conn, err := t.newConnection(remote, media)
	if err != nil {
		return nil, err
	}
	offer, err := conn.pc.CreateOffer(nil)
	if err != nil {
		conn.fail()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	local, err := conn.setLocal(ctx, offer)
	if err != nil {
		conn.fail()
		return nil, err
	}
	answer, err := t.ex.Offer(ctx, self, remote, local)
	if err != nil {
		conn.fail()
		return nil, fmt.Errorf("exchange offer with %s: %w", remote, err)
	}
	if err := conn.pc.SetRemoteDescription(answer); err != nil {
		conn.fail()
		return nil, fmt.Errorf("set answer: %w", err)
	}
	return conn, nil
}

func (t *Transport) Answer(ctx context.Context, remote domain.TransportPeerID, media client.LocalMedia) (client.MediaSession, error) {
	self, err := t.self()
	if err != nil {
		return nil, err
	}
	offer, err := t.ex.Await(ctx, self, remote)
	if err != nil {
		return nil, fmt.Errorf("await offer from %s: %w", remote, err)
	}
	conn, err := t.newConnection(remote, media)
	if err != nil {
		return nil, err
	}
	if err := conn.pc.SetRemoteDescription(offer.SDP); err != nil {
		conn.fail()
		return nil, fmt.Errorf("set offer: %w", err)
	}
	answer, err := conn.pc.CreateAnswer(nil)
	if err != nil {
		conn.fail()
		return nil, fmt.Errorf("create answer: %w", err)
	}
	local, err := conn.setLocal(ctx, answer)
	if err != nil {
		conn.fail()
		return nil, err
	}
	offer.Reply(local)
	return conn, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	id := t.id
	t.id = ""
	t.mu.Unlock()
	if b, ok := t.ex.(*Broker); ok && id != "" {
		b.Forget(id)
	}
	return nil
}

func (t *Transport) newConnection(remote domain.TransportPeerID, media client.LocalMedia) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(t.cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	conn := &WebRTCConnection{pc: pc, remote: remote}
	if tracks, ok := media.(*LocalTracks); ok {
		for _, tr := range tracks.tracks() {
			if _, err := pc.AddTrack(tr); err != nil {
				conn.fail()
				return nil, fmt.Errorf("add %s track: %w", tr.Kind(), err)
			}
		}
	}
	conn.watch()
	return conn, nil
}
