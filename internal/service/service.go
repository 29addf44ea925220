// Package service implements the enclave's HTTP service, which holds the
// track's secret key pair and shares it with peer enclaves.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave/nitro"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/keysync"
	"github.com/worldcoin/world-chat-backend-sub000/internal/metrics"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service/attestation"
	"github.com/worldcoin/world-chat-backend-sub000/internal/system"
	"github.com/worldcoin/world-chat-backend-sub000/internal/tunnel"
)

const shutdownTimeout = 5 * time.Second

var (
	errInsecureRNG    = errors.New("system does not use desired RNG")
	errInsecureKernel = errors.New("system does not have minimum desired kernel version")
)

// Service is the enclave's HTTP service.
type Service struct {
	keys       *enclave.Keys
	builder    *attestation.Builder
	instanceID string
	reg        *prometheus.Registry
	metrics    *metrics.Metrics
	keyInit    *initializer
	responder  *keysync.Responder
}

// New sets up the service: it creates the ephemeral key pair, attests it,
// and derives from our own attestation document which peers we trust.  The
// given verifier options apply to the peer verifier.
func New(
	cfg *config.Enclave,
	attester enclave.Attester,
	mechanism tunnel.Mechanism,
	opts ...nitro.Option,
) (_ *Service, err error) {
	defer errs.Wrap(&err, "failed to set up service")

	ephemeral, err := box.NewKeyPair()
	if err != nil {
		return nil, err
	}
	raw, err := attester.Attest(&enclave.AuxInfo{PublicKey: ephemeral.Public[:]})
	if err != nil {
		return nil, err
	}
	own, err := nitro.ParseDocument(raw.Doc)
	if err != nil {
		return nil, err
	}
	if own.PCRs.FromDebugMode() {
		log.Warn().Msg("Enclave runs in debug mode.  Its code PCRs are all zero.")
	}
	measurements, err := nitro.FromDocument(own)
	if err != nil {
		return nil, err
	}

	var (
		keys     = enclave.NewKeys(ephemeral)
		builder  = attestation.NewBuilder(attester)
		verifier = nitro.NewVerifier(measurements, opts...)
		reg      = prometheus.NewRegistry()
		m        = metrics.New(reg, cfg.MetricsNamespace)
	)
	keyInit := &initializer{
		keys:      keys,
		requester: keysync.NewRequester(builder, verifier, keys, m),
		mechanism: mechanism,
		timeout:   cfg.KeySyncTimeout,
	}
	s := &Service{
		keys:       keys,
		builder:    builder,
		instanceID: uuid.NewString(),
		reg:        reg,
		metrics:    m,
		keyInit:    keyInit,
		responder:  keysync.NewResponder(builder, verifier, keys, m),
	}
	log.Info().
		Str("instance_id", s.instanceID).
		Str("attester", attester.Type()).
		Str("module_id", own.ModuleID).
		Msg("Set up enclave service.")
	return s, nil
}

// Run sets up the service and serves it on the mechanism's listener until the
// given context is canceled.
func Run(
	ctx context.Context,
	cfg *config.Enclave,
	attester enclave.Attester,
	mechanism tunnel.Mechanism,
	opts ...nitro.Option,
) error {
	if err := checkSystemSafety(cfg); err != nil {
		return err
	}
	s, err := New(cfg, attester, mechanism, opts...)
	if err != nil {
		return err
	}
	l, err := mechanism.Listen(cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, netutil.LimitListener(l, cfg.MaxConns))
}

// Serve serves HTTP requests on the given listener until the context is
// canceled, and then shuts down gracefully.
func (s *Service) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", l.Addr().String()).Msg("Starting web server.")
		if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down web server.")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return g.Wait()
}

func checkSystemSafety(cfg *config.Enclave) error {
	if cfg.Insecure {
		return nil
	}

	if !system.HasSecureRNG() {
		return errInsecureRNG
	}
	if !system.HasSecureKernelVersion() {
		return errInsecureKernel
	}
	return nil
}
