package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/config"
	"github.com/preethamak/BlockDrive/events"
	"github.com/preethamak/BlockDrive/grpcapi"
	"github.com/preethamak/BlockDrive/logging"
	"github.com/preethamak/BlockDrive/rpc"
)

func serve(cfg config.Config, console bool) error {
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: console})
	if err != nil {
		return err
	}
	defer closer.Close()
	log = log.With().Str("service", "blockdrived").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}

	var pub events.Publisher
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			b.store.Close()
			return err
		}
		defer amqpPub.Close()
		pub = amqpPub
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing registry events")
	}

	reg := newRegistry(cfg, b, pub, log)
	defer func() {
		if err := reg.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	verifier := auth.NewVerifier(cfg.AuthWindow)
	d := &daemon{
		log: log,
		http: &http.Server{
			Addr: cfg.ListenAddr,
			Handler: rpc.NewServer(rpc.ServerConfig{
				Registry: reg,
				Verifier: verifier,
				Logger:   log,
				Version:  version,
				Network:  cfg.Network,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	if cfg.GRPCListenAddr != "" {
		d.grpcAddr = cfg.GRPCListenAddr
		d.grpc = grpcapi.NewGRPCServer(reg, verifier, log)
	}

	log.Info().
		Str("version", version).
		Str("network", cfg.Network).
		Str("backend", cfg.Backend).
		Str("datadir", cfg.DataDir).
		Msg("starting")
	return d.run(ctx)
}

// daemon owns the listeners.
type daemon struct {
	log      zerolog.Logger
	http     *http.Server
	grpc     *grpc.Server
	grpcAddr string
}

// run serves until ctx is done or a listener fails, then shuts both down.
func (d *daemon) run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", d.http.Addr)
	if err != nil {
		return err
	}
	var grpcLn net.Listener
	if d.grpc != nil {
		if grpcLn, err = net.Listen("tcp", d.grpcAddr); err != nil {
			httpLn.Close()
			return err
		}
	}
	return d.serveOn(ctx, httpLn, grpcLn)
}

func (d *daemon) serveOn(ctx context.Context, httpLn, grpcLn net.Listener) error {
	errc := make(chan error, 2)
	go func() {
		d.log.Info().Str("addr", httpLn.Addr().String()).Msg("json-rpc listening")
		if err := d.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	if grpcLn != nil {
		go func() {
			d.log.Info().Str("addr", grpcLn.Addr().String()).Msg("grpc listening")
			if err := d.grpc.Serve(grpcLn); err != nil {
				errc <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		d.log.Info().Msg("shutting down")
	case serveErr = <-errc:
		d.log.Error().Err(serveErr).Msg("listener failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.http.Shutdown(shutdownCtx); err != nil {
		d.log.Warn().Err(err).Msg("json-rpc shutdown")
	}
	if d.grpc != nil {
		d.grpc.GracefulStop()
	}
	d.log.Info().Msg("stopped")
	return serveErr
}
