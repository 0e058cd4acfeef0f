package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/peercall/internal/adapters/rtc"
	sig "github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/client"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// smokeCmd places one call between two headless phones through a running
// server. Media is negotiated in process, so only signaling is remote.
var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Place a test call between two headless clients",
	RunE:  runSmoke,
}

func runSmoke(cmd *cobra.Command, _ []string) error {
	initLogger("info", true)
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	broker := rtc.NewBroker()
	g, gctx := errgroup.WithContext(ctx)
	alice, err := smokePhone(gctx, g, server, "smoke-alice", broker)
	if err != nil {
		return err
	}
	bob, err := smokePhone(gctx, g, server, "smoke-bob", broker)
	if err != nil {
		return err
	}
	defer func() {
		_ = alice.Close()
		_ = bob.Close()
	}()

	if err := waitFor(ctx, func() bool {
		self := bob.State().Self
		rec, ok := alice.Roster.Get(self)
		return self != "" && ok && rec.TransportPeerID != ""
	}); err != nil {
		return fmt.Errorf("bob never registered: %w", err)
	}

	alice.Dispatch(client.Dial{Target: bob.State().Self})
	if err := waitFor(ctx, func() bool { return bob.State().Status == client.Incoming }); err != nil {
		return fmt.Errorf("no incoming call: %w", err)
	}
	bob.Dispatch(client.Accept{})
	if err := waitFor(ctx, func() bool { return alice.State().SessionUp && bob.State().SessionUp }); err != nil {
		return fmt.Errorf("media session not established: %w", err)
	}
	log.Info().Str("module", "smoke").Msg("call connected")

	alice.Dispatch(client.HangUp{})
	if err := waitFor(ctx, func() bool { return bob.State().Status == client.Idle }); err != nil {
		return fmt.Errorf("hang-up not delivered: %w", err)
	}
	log.Info().Str("module", "smoke").Msg("call ended, smoke test passed")
	cancel()
	return g.Wait()
}

func smokePhone(ctx context.Context, g *errgroup.Group, server, user string, broker *rtc.Broker) (*client.Phone, error) {
	conn, err := sig.Dial(ctx, server+"?userId="+user, nil)
	if err != nil {
		return nil, err
	}
	// Both phones live in this process; host candidates are enough.
	p := client.NewPhone(conn, rtc.SyntheticSource{StreamID: user}, rtc.NewTransport(webrtc.Configuration{}, broker))
	g.Go(func() error {
		err := conn.Run(ctx, func(env protocol.Envelope) {
			if err := p.HandleEnvelope(env); err != nil {
				log.Warn().Err(err).Str("module", "smoke").Str("user", user).Msg("handle envelope")
			}
		})
		p.Dispatch(client.Disconnected{})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	if err := p.Start(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
