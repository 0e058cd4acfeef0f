package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Signaler delivers envelopes to the coordinator.
type Signaler interface {
	Send(env protocol.Envelope) error
}

// LocalMedia is the camera/microphone capture of one call.
type LocalMedia interface {
	SetEnabled(kind MediaKind, on bool)
	Close()
}

type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// MediaSession is an established peer-to-peer media path.
type MediaSession interface {
	Close() error
}

// MediaTransport is the peer-to-peer layer addressed by transport peer ids.
type MediaTransport interface {
	Open(ctx context.Context) (domain.TransportPeerID, error)
	Dial(ctx context.Context, remote domain.TransportPeerID, media LocalMedia) (MediaSession, error)
	Answer(ctx context.Context, remote domain.TransportPeerID, media LocalMedia) (MediaSession, error)
	Close() error
}

var ErrUnknownMessage = errors.New("unknown message type")

// Phone drives Transition and executes its effects. Transitions are
// serialized; media work runs in goroutines bound to the current call.
type Phone struct {
	Roster *Roster

	sig Signaler
	src MediaSource
	tr  MediaTransport

	mu       sync.Mutex
	state    State
	local    map[uint64]LocalMedia
	sessions map[uint64]MediaSession
	callCtx  context.Context
	cancel   context.CancelFunc
	onChange func(State)

	reports chan string
	wg      sync.WaitGroup
}

func NewPhone(sig Signaler, src MediaSource, tr MediaTransport) *Phone {
	return &Phone{
		Roster:   NewRoster(),
		sig:      sig,
		src:      src,
		tr:       tr,
		local:    make(map[uint64]LocalMedia),
		sessions: make(map[uint64]MediaSession),
		reports:  make(chan string, 16),
	}
}

// OnChange registers a callback invoked with every new state, under the
// phone lock. It must not call back into the phone.
func (p *Phone) OnChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Start opens the media transport and registers its peer id.
func (p *Phone) Start(ctx context.Context) error {
	id, err := p.tr.Open(ctx)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	p.Dispatch(PeerReady{PeerID: id})
	return nil
}

func (p *Phone) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reports carries user-facing messages. Messages are dropped when nobody reads.
func (p *Phone) Reports() <-chan string { return p.reports }

func (p *Phone) Dispatch(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.state
	next, effects := Transition(p.state, ev)
	p.state = next
	if prev.Status != next.Status {
		log.Debug().Str("module", "client").Str("from", prev.Status.String()).
			Str("to", next.Status.String()).Uint64("epoch", next.Epoch).Msgf("%T", ev)
	}
	for _, eff := range effects {
		p.apply(eff)
	}
	if p.onChange != nil && (prev != next || len(effects) > 0) {
		p.onChange(next)
	}
}

// apply runs with p.mu held and never blocks on media work.
func (p *Phone) apply(eff Effect) {
	switch e := eff.(type) {
	case Send:
		if err := p.sig.Send(e.Envelope); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("type", string(e.Envelope.Type)).Msg("signal send failed")
		}
	case AcquireMedia:
		p.acquire(p.ctxLocked(), e.Epoch)
	case StartSession:
		p.startSession(p.ctxLocked(), e)
	case Release:
		p.releaseLocked()
	case DiscardMedia:
		p.discardLocked(e.Epoch)
	case Toggle:
		if m, ok := p.local[p.state.Epoch]; ok {
			m.SetEnabled(e.Kind, e.On)
		}
	case Report:
		log.Info().Str("module", "client").Msg(e.Message)
		select {
		case p.reports <- e.Message:
		default:
		}
	}
}

func (p *Phone) ctxLocked() context.Context {
	if p.callCtx == nil {
		p.callCtx, p.cancel = context.WithCancel(context.Background())
	}
	return p.callCtx
}

func (p *Phone) acquire(ctx context.Context, epoch uint64) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		media, err := p.src.Acquire(ctx)
		if err != nil {
			p.Dispatch(MediaAcquireFailed{Epoch: epoch, Err: err})
			return
		}
		p.mu.Lock()
		p.local[epoch] = media
		p.mu.Unlock()
		p.Dispatch(MediaAcquired{Epoch: epoch})
	}()
}

func (p *Phone) startSession(ctx context.Context, e StartSession) {
	media, ok := p.local[e.Epoch]
	if !ok {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		var (
			sess MediaSession
			err  error
		)
		if e.Role == RoleDialer {
			sess, err = p.tr.Dial(ctx, e.RemotePeer, media)
		} else {
			sess, err = p.tr.Answer(ctx, e.RemotePeer, media)
		}
		if err != nil {
			p.Dispatch(SessionFailed{Epoch: e.Epoch, Err: err})
			return
		}
		p.mu.Lock()
		p.sessions[e.Epoch] = sess
		p.mu.Unlock()
		p.Dispatch(SessionUp{Epoch: e.Epoch})
	}()
}

func (p *Phone) releaseLocked() {
	if p.cancel != nil {
		p.cancel()
		p.callCtx, p.cancel = nil, nil
	}
	for epoch := range p.sessions {
		p.discardLocked(epoch)
	}
	for epoch := range p.local {
		p.discardLocked(epoch)
	}
}

func (p *Phone) discardLocked(epoch uint64) {
	if sess, ok := p.sessions[epoch]; ok {
		if err := sess.Close(); err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("close media session")
		}
		delete(p.sessions, epoch)
	}
	if m, ok := p.local[epoch]; ok {
		m.Close()
		delete(p.local, epoch)
	}
}

// HandleEnvelope feeds one coordinator message into the phone.
func (p *Phone) HandleEnvelope(env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeWelcome:
		var w protocol.Welcome
		if err := env.Bind(&w); err != nil {
			return err
		}
		p.Dispatch(Welcomed{Conn: w.ConnectionID})
	case protocol.TypeUsersList:
		var list []domain.ParticipantRecord
		if err := env.Bind(&list); err != nil {
			return err
		}
		p.Roster.Replace(list)
	case protocol.TypeUserJoined:
		var j protocol.UserJoined
		if err := env.Bind(&j); err != nil {
			return err
		}
		p.Roster.Upsert(j.Record)
	case protocol.TypeUserLeft:
		var l protocol.UserLeft
		if err := env.Bind(&l); err != nil {
			return err
		}
		p.Roster.Remove(l.ConnectionID)
	case protocol.TypePeerRegistered:
		var rec domain.ParticipantRecord
		if err := env.Bind(&rec); err != nil {
			return err
		}
		p.Roster.Upsert(rec)
	case protocol.TypeOnlineUsers:
		var online []domain.LogicalUserID
		if err := env.Bind(&online); err != nil {
			return err
		}
		p.Roster.SetOnline(online)
	case protocol.TypeIncomingCall:
		var ic protocol.IncomingCall
		if err := env.Bind(&ic); err != nil {
			return err
		}
		p.Dispatch(IncomingCall{From: ic.CallerConnectionID, CallerPeer: ic.CallerTransportPeerID})
	case protocol.TypeCallAccepted:
		var ca protocol.CallAccepted
		if err := env.Bind(&ca); err != nil {
			return err
		}
		p.Dispatch(CallAccepted{Answerer: ca.AnswererConnectionID, AnswererPeer: ca.AnswererTransportPeerID})
	case protocol.TypeCallRejected:
		p.Dispatch(CallRejected{})
	case protocol.TypeCallFailed:
		var cf protocol.CallFailed
		if err := env.Bind(&cf); err != nil {
			return err
		}
		p.Dispatch(CallFailed{Reason: cf.Reason})
	case protocol.TypeCallEnded:
		p.Dispatch(CallEnded{})
	case protocol.TypeMediaFailed:
		var mf protocol.MediaFailed
		if err := env.Bind(&mf); err != nil {
			return err
		}
		p.Dispatch(MediaFailed{From: mf.FromConnectionID})
	case protocol.TypePong:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, env.Type)
	}
	return nil
}

// Close releases the current call, waits for media goroutines and closes the
// transport.
func (p *Phone) Close() error {
	p.Dispatch(HangUp{})
	p.mu.Lock()
	p.releaseLocked()
	p.mu.Unlock()
	p.wg.Wait()
	return p.tr.Close()
}
