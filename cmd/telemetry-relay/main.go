package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eytandecker/telemetry-relay/internal/config"
	"github.com/eytandecker/telemetry-relay/internal/hub"
	"github.com/eytandecker/telemetry-relay/internal/ingest"
	"github.com/eytandecker/telemetry-relay/internal/logging"
	internalmcp "github.com/eytandecker/telemetry-relay/internal/mcp"
	"github.com/eytandecker/telemetry-relay/internal/state"
	"github.com/eytandecker/telemetry-relay/internal/telemetry"
	"github.com/eytandecker/telemetry-relay/internal/web"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

func main() {
	if err := run(); err != nil {
		var ingestErr *types.IngestError
		if errors.As(err, &ingestErr) {
			log.WithError(err).Error("telemetry link failed")
		} else {
			log.WithError(err).Error("relay exited")
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store := state.NewStore(cfg.State.StaleThreshold.Std())
	h := hub.New(store, hub.Config{
		QueueSize:     cfg.Hub.QueueSize,
		StatusMessage: cfg.Hub.StatusMessage,
	})
	defer h.Close()

	dispatcher := telemetry.NewDispatcher(store, h)
	listener := ingest.NewListener(ingest.Config{
		Address:       net.JoinHostPort(cfg.Ingest.Host, strconv.Itoa(cfg.Ingest.Port)),
		ReadBuffer:    cfg.Ingest.ReadBuffer,
		StatsInterval: cfg.Ingest.StatsInterval.Std(),
	}, dispatcher)

	mcpServer := internalmcp.NewServer(store)
	webServer := web.NewServer(web.Config{
		Addr:      net.JoinHostPort("", strconv.Itoa(cfg.HTTP.Port)),
		StaticDir: cfg.HTTP.StaticDir,
	}, h, store, mcpServer.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(listener.Run(gctx))
	})
	g.Go(func() error {
		err := webServer.Run(gctx)
		// viewers must not outlive the server
		h.Close()
		return err
	})
	if cfg.MCP.Stdio {
		g.Go(func() error {
			if err := ignoreCanceled(mcpServer.Run(gctx)); err != nil {
				log.WithError(err).Warn("mcp: stdio session ended")
			}
			return nil
		})
	}

	log.WithFields(log.Fields{
		"udp":  cfg.Ingest.Port,
		"http": cfg.HTTP.Port,
	}).Info("relay started")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("relay stopped")
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
