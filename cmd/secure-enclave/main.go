package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/noop"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/logger"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service"
	"github.com/worldcoin/world-chat-backend-sub000/internal/tunnel"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/validate"
)

const (
	appName             = "secure-enclave"
	defaultPort         = 8080
	defaultKeySyncTime  = 5 * time.Second
	defaultMaxConns     = 64
	defaultMetricsSpace = "secure_enclave"
)

func parseFlags(out io.Writer, args []string) (*config.Enclave, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(out)

	port := fs.Uint(
		"port",
		defaultPort,
		"VSOCK port to listen on (TCP on 127.0.0.1 with -insecure)",
	)
	insecure := fs.Bool(
		"insecure",
		false,
		"enable testing outside an enclave by disabling attestation",
	)
	keySyncTimeout := fs.Duration(
		"keysync-timeout",
		defaultKeySyncTime,
		"timeout for fetching the secret key from a peer enclave",
	)
	logLevel := fs.String(
		"log-level",
		zerolog.InfoLevel.String(),
		"minimum log level",
	)
	maxConns := fs.Int(
		"max-conns",
		defaultMaxConns,
		"maximum number of concurrent connections",
	)
	metricsNamespace := fs.String(
		"metrics-namespace",
		defaultMetricsSpace,
		"prefix of Prometheus metrics",
	)

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	return &config.Enclave{
		Port:             uint32(*port),
		Insecure:         *insecure,
		KeySyncTimeout:   *keySyncTimeout,
		LogLevel:         *logLevel,
		MaxConns:         *maxConns,
		MetricsNamespace: *metricsNamespace,
	}, nil
}

func run(ctx context.Context, out io.Writer, args []string) (err error) {
	defer errs.Wrap(&err, "failed to run service")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Logger = logger.Default(appName, out)

	cfg, err := parseFlags(out, args)
	if err != nil {
		return err
	}
	if err := validate.Object(cfg); err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	// Initialize dependencies and start the service.
	var (
		attester  enclave.Attester = nitro.NewAttester()
		mechanism tunnel.Mechanism = tunnel.VSOCK{}
		opts      []nitro.Option
	)
	if cfg.Insecure {
		log.Warn().Msg("Running in insecure mode.  Never do this in production.")
		a := noop.NewAttester()
		attester = a
		mechanism = tunnel.Noop{}
		opts = append(opts, nitro.WithRoots(a.Roots()))
	}
	return service.Run(ctx, cfg, attester, mechanism, opts...)
}

func main() {
	if err := run(context.Background(), os.Stderr, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("Failed to run secure enclave.")
	}
}
