package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waygate/waygate/internal/common/logtrace"
	"github.com/waygate/waygate/internal/gateway/config"
	"github.com/waygate/waygate/internal/gateway/credstore"
	"github.com/waygate/waygate/internal/gateway/protocol"
	"github.com/waygate/waygate/internal/gateway/qrcode"
	"github.com/waygate/waygate/internal/gateway/server"
	"github.com/waygate/waygate/internal/gateway/session"

	"github.com/rs/zerolog/log"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	creds, err := createCredStore(ctx)
	if err != nil {
		return fmt.Errorf("creating credential store: %w", err)
	}
	defer creds.Close()

	dialer, err := createDialer()
	if err != nil {
		return err
	}
	session.Init(dialer, creds, &qrcode.PNGEncoder{})

	if config.Config().Sessions.Restore {
		slog.Info().Msg("restoring stored sessions")
		session.ActiveManager().RestoreSessions(ctx)
	}

	serverErrors, shutdownServer, err := createGatewayServer(ctx)
	if err != nil {
		return fmt.Errorf("creating gateway server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		session.ActiveManager().Shutdown()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
		session.ActiveManager().Shutdown()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createCredStore(ctx context.Context) (credstore.Store, error) {
	cfg := config.Config()
	switch cfg.Credentials.Backend {
	case "postgres":
		return credstore.NewPostgresStore(ctx, cfg.Credentials.PostgresDSN, cfg.Credentials.SealingKey)
	default:
		return credstore.NewFileStore(cfg.Sessions.Dir, cfg.Credentials.SealingKey)
	}
}

func createDialer() (protocol.Dialer, error) {
	switch driver := config.Config().Protocol.Driver; driver {
	case "loopback":
		return protocol.NewLoopbackDialer(), nil
	default:
		return nil, fmt.Errorf("unknown protocol driver: %s", driver)
	}
}

func createGatewayServer(ctx context.Context) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.CreateNewServer()
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

const DefaultConfigFile = "/etc/waygate/waygate.conf"

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", DefaultConfigFile, "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
