package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/keyexchange"
	"github.com/worldcoin/world-chat-backend-sub000/internal/logger"
	"github.com/worldcoin/world-chat-backend-sub000/internal/provision"
	"github.com/worldcoin/world-chat-backend-sub000/internal/tunnel"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/validate"
)

const appName = "enclave-init"

// newFlags returns fresh flags for every app.  urfave/cli stores parsed and
// environment values in the flag structs themselves.
func newFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:    "cid",
			EnvVars: []string{"NITRO_CID"},
			Usage:   "the enclave's VSOCK CID",
		},
		&cli.UintFlag{
			Name:    "port",
			EnvVars: []string{"NITRO_PORT"},
			Usage:   "the enclave service's VSOCK port",
		},
		&cli.UintFlag{
			Name:    "cluster-proxy-port",
			EnvVars: []string{"ENCLAVE_CLUSTER_PROXY_PORT"},
			Usage:   "the parent's VSOCK port that forwards to peer enclaves",
		},
		&cli.StringFlag{
			Name:    "track",
			EnvVars: []string{"ENCLAVE_TRACK"},
			Usage:   "the group of enclaves that share a secret key",
		},
		&cli.StringFlag{
			Name:    "redis-url",
			EnvVars: []string{"REDIS_URL"},
			Usage:   "URL of the Redis instance that coordinates key generation",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "talk to the enclave over loopback TCP instead of VSOCK",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
			Usage: "how long to wait for the enclave, and for each attempt",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Value: 3,
			Usage: "maximum number of initialization attempts",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Value: 2 * time.Second,
			Usage: "delay between initialization attempts",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Value: zerolog.InfoLevel.String(),
			Usage: "minimum log level",
		},
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      appName,
		Usage:     "Initialize a freshly started enclave with its track's secret key",
		Flags:     newFlags(),
		Writer:    out,
		ErrWriter: out,
		Action: func(cCtx *cli.Context) error {
			log.Logger = logger.Default(appName, out)

			cfg := &config.Init{
				CID:              uint32(cCtx.Uint("cid")),
				Port:             uint32(cCtx.Uint("port")),
				ClusterProxyPort: uint32(cCtx.Uint("cluster-proxy-port")),
				Track:            cCtx.String("track"),
				RedisURL:         cCtx.String("redis-url"),
				Insecure:         cCtx.Bool("insecure"),
				Timeout:          cCtx.Duration("timeout"),
				MaxRetries:       cCtx.Int("max-retries"),
				RetryDelay:       cCtx.Duration("retry-delay"),
				LogLevel:         cCtx.String("log-level"),
			}
			if err := validate.Object(cfg); err != nil {
				return err
			}
			if err := logger.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			return run(cCtx.Context, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Init) (err error) {
	defer errs.Wrap(&err, "failed to run %s", appName)

	store, err := keyexchange.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	var mechanism tunnel.Mechanism = tunnel.VSOCK{}
	if cfg.Insecure {
		mechanism = tunnel.Noop{}
	}
	client := provision.NewClient(mechanism, cfg.CID, cfg.Port, cfg.Timeout)
	defer client.Close()

	log.Info().Str("track", cfg.Track).Uint32("cid", cfg.CID).Msg("Initializing enclave.")
	return provision.Run(ctx, cfg, keyexchange.New(store), client)
}

func main() {
	if err := newApp(os.Stderr).Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize enclave.")
	}
}
