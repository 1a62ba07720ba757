package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	httpServer "github.com/avdeyev/tapbattle/backend/server/http"
	websocketServer "github.com/avdeyev/tapbattle/backend/server/websocket"
	"github.com/avdeyev/tapbattle/backend/service"
	store "github.com/avdeyev/tapbattle/backend/storage/memory"
	sw "github.com/avdeyev/tapbattle/backend/switch"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
		countdown     = fs.Duration("countdown", service.DefaultCountdown, "match countdown duration")
		game          = fs.Duration("game", service.DefaultGame, "match game duration")
		settle        = fs.Duration("settle", service.DefaultSettle, "deposit-to-start settle delay")
		evictAfter    = fs.Duration("evict-after", service.DefaultEvictAfter, "finished session retention")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	broker := sw.NewSwitch(&logger)
	svc := service.NewService(service.Config{
		Logger:      &logger,
		Store:       store.NewStore(),
		Broadcaster: broker,
		Countdown:   *countdown,
		Game:        *game,
		Settle:      *settle,
		EvictAfter:  *evictAfter,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		SessionReader: svc,
		ListenAddr:    *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:     &logger,
		Service:    svc,
		Broker:     broker,
		ListenAddr: *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
	svc.Shutdown()
}
