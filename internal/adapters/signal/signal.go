package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/app/orch"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metric"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  64 << 10,
		PingPeriod: 30 * time.Second,
		SendBuffer: 32,
	}
}

// pongWait leaves a little slack after the next expected pong.
func (o Options) pongWait() time.Duration {
	return o.PingPeriod*10/9 + time.Second
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Registry *app.Registry
	Opts     Options
}

func NewSignalWSController(o *orch.Orchestrator, registry *app.Registry, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Registry: registry,
		Opts:     opts,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is handled by middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either side
// closes it. user may be empty.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user domain.LogicalUserID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Opts.SendBuffer),
	}
	id := domain.NewConnectionID()
	sess := core.NewSession(id, user, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sess, cancel)
	metric.IncrementWSActiveConnections()
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("user", string(user)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sess, conn)
}

// disconnect runs exactly once per connection, from the read side.
func (ctl *SignalWSController) disconnect(sess core.Session, c *WsSignalConn) {
	c.Close()
	ctl.Registry.Cancel(sess.ID())
	ctl.Registry.Unbind(sess.ID())
	metric.DecrementWSActiveConnections()
	ctl.Orch.OnDisconnect(context.Background(), sess.ID())
}
