package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/hassctl/internal/auth"
	"github.com/danmuck/hassctl/internal/hass"
	"github.com/danmuck/hassctl/internal/protocol/session"
	"github.com/danmuck/hassctl/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errConsumerBehind = errors.New("watch: subscription dropped because the event buffer filled")

type watchOptions struct {
	eventType       string
	count           int
	metricsAddr     string
	metricsTokenEnv string
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [event_type]",
		Short: "Stream events as JSON until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.eventType = strings.TrimSpace(args[0])
			}
			if opts.count < 0 {
				return fmt.Errorf("--count must be >= 0")
			}
			return ctx.watch(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Stop after this many events (0 = unlimited)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address while watching")
	cmd.Flags().StringVar(&opts.metricsTokenEnv, "metrics-token-env", "", "Require a bearer token from this environment variable on /metrics")
	return cmd
}

func (c *commandContext) watch(cmd *cobra.Command, opts watchOptions) error {
	clientCfg, sessCfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	guard, err := metricsGuard(opts.metricsTokenEnv)
	if err != nil {
		return err
	}

	setupCtx, cancelSetup := c.requestContext(cmd)
	hc, err := hass.Connect(setupCtx, clientCfg, sessCfg)
	if err != nil {
		cancelSetup()
		return err
	}
	defer hc.Close()
	stream, err := hc.SubscribeEvents(setupCtx, opts.eventType)
	cancelSetup()
	if err != nil {
		return err
	}
	log.Info().
		Uint64("subscription", stream.ID()).
		Str("event_type", opts.eventType).
		Msg("hassctl.watch subscribed")

	runCtx, stop := context.WithCancel(commandCtx(cmd))
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	if opts.metricsAddr != "" {
		sess := hc.Session()
		mon := server.NewMonitor(server.Options{
			Version: sess.ServerVersion(),
			Guard:   guard,
			Status: func() server.Status {
				return server.Status{
					ConnID:        sess.ConnID(),
					ServerVersion: sess.ServerVersion(),
					Connected:     !sessionEnded(sess),
				}
			},
		})
		g.Go(func() error {
			return mon.ListenAndServe(gctx, opts.metricsAddr)
		})
	}

	g.Go(func() error {
		defer stop()
		return printEvents(gctx, cmd, hc, stream, opts.count)
	})

	return g.Wait()
}

func printEvents(ctx context.Context, cmd *cobra.Command, hc *hass.Client, stream *hass.EventStream, count int) error {
	seen := 0
	for {
		ev, err := stream.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, hass.ErrStreamClosed):
			return streamClosed(hc, stream)
		case ctx.Err() != nil:
			unsubscribe(hc, stream)
			return nil
		default:
			return err
		}
		if err := writeJSON(cmd, ev); err != nil {
			return err
		}
		seen++
		if count > 0 && seen >= count {
			unsubscribe(hc, stream)
			return nil
		}
	}
}

// streamClosed tells a pruned subscription from a finished connection. The
// unsubscribe round trip fails with ErrConnectionClosed once teardown began.
func streamClosed(hc *hass.Client, stream *hass.EventStream) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := stream.Close(ctx)
	switch {
	case errors.Is(err, session.ErrSubscriptionNotFound):
		return errConsumerBehind
	case err != nil && !isClosing(err):
		return err
	case err == nil:
		return errConsumerBehind
	}
	<-hc.Session().Done()
	if cause := hc.Session().Err(); cause != nil && !errors.Is(cause, io.EOF) {
		return cause
	}
	log.Info().Uint64("subscription", stream.ID()).Msg("hassctl.watch server closed the connection")
	return nil
}

func unsubscribe(hc *hass.Client, stream *hass.EventStream) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.Close(ctx); err != nil && !isClosing(err) {
		log.Warn().Uint64("subscription", stream.ID()).Err(err).Msg("hassctl.watch unsubscribe failed")
	}
}

func sessionEnded(sess *session.Client) bool {
	select {
	case <-sess.Done():
		return true
	default:
		return false
	}
}

func metricsGuard(env string) (auth.Validator, error) {
	env = strings.TrimSpace(env)
	if env == "" {
		return nil, nil
	}
	token := strings.TrimSpace(os.Getenv(env))
	if token == "" {
		return nil, fmt.Errorf("--metrics-token-env: %s is empty", env)
	}
	return auth.StaticToken{Token: token}, nil
}
