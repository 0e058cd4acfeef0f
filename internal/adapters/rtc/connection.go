package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTCConnection is one media session with a remote peer.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	remote domain.TransportPeerID

	mu     sync.Mutex
	state  webrtc.PeerConnectionState
	tracks int
	closed bool
}

func (c *WebRTCConnection) watch() {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.mu.Lock()
		c.state = s
		c.mu.Unlock()
		log.Info().Str("module", "rtc").Str("remote", string(c.remote)).Str("peer_connection_state", s.String()).Msg("Peer state")
	})
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.mu.Lock()
		c.tracks++
		c.mu.Unlock()
		log.Info().
			Str("module", "rtc").
			Str("remote", string(c.remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("OnTrack received")
	})
}

// setLocal applies desc and waits for ICE gathering so the returned
// description carries every candidate.
func (c *WebRTCConnection) setLocal(ctx context.Context, desc webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(desc); err != nil {
		return webrtc.SessionDescription{}, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
	return *c.pc.LocalDescription(), nil
}

func (c *WebRTCConnection) State() webrtc.PeerConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *WebRTCConnection) RemoteTracks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks
}

func (c *WebRTCConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	err := c.pc.Close()
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("remote", string(c.remote)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("remote", string(c.remote)).Msg("closed")
	}
	return err
}

func (c *WebRTCConnection) fail() {
	_ = c.Close()
}
