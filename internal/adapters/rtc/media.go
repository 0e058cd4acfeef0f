package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/peercall/internal/client"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// LocalTracks is a pair of local tracks attached to every session of one call.
type LocalTracks struct {
	Video *webrtc.TrackLocalStaticSample
	Audio *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled map[client.MediaKind]bool
	closed  bool
}

func (l *LocalTracks) SetEnabled(kind client.MediaKind, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled[kind] = on
	log.Debug().Str("module", "rtc").Str("kind", string(kind)).Bool("on", on).Msg("track toggled")
}

func (l *LocalTracks) Enabled(kind client.MediaKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled[kind] && !l.closed
}

func (l *LocalTracks) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

func (l *LocalTracks) tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{l.Video, l.Audio}
}

// SyntheticSource produces VP8 video and Opus audio tracks that carry no
// samples. It stands in for a capture device in headless clients.
type SyntheticSource struct {
	StreamID string
}

func (s SyntheticSource) Acquire(ctx context.Context) (client.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream := s.StreamID
	if stream == "" {
		stream = "peercall"
	}
	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", stream)
	if err != nil {
		return nil, fmt.Errorf("video track: %w", err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", stream)
	if err != nil {
		return nil, fmt.Errorf("audio track: %w", err)
	}
	return &LocalTracks{
		Video:   video,
		Audio:   audio,
		enabled: map[client.MediaKind]bool{client.KindVideo: true, client.KindAudio: true},
	}, nil
}
