// Package provision implements the host-side workflow that initializes a
// freshly started enclave.  The host decides, with the help of a shared lock,
// whether the enclave may generate the track's secret key pair or must fetch
// it from a peer.  Then it asks the enclave to initialize itself, and retries
// a few times if that fails.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/httpx"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// ErrExhausted is returned once all initialization attempts failed.
var ErrExhausted = errors.New("all initialization attempts failed")

// Coordinator decides which enclave of a track generates the secret key pair.
// *keyexchange.Coordinator implements it.
type Coordinator interface {
	ShouldGenerateKey(ctx context.Context, track string) (bool, error)
	MarkKeyLoaded(ctx context.Context, track string) error
	ReleaseLock(ctx context.Context, track string) error
}

// Enclave is the enclave's service as seen from the host.  *Client
// implements it.
type Enclave interface {
	WaitForHealth(ctx context.Context) error
	Initialize(ctx context.Context, req *api.InitializeRequest) (*api.InitializeResponse, error)
}

// Run initializes the enclave.  If it returns an error, the enclave is not
// initialized, and it's the caller's job to give up on it.
func Run(ctx context.Context, cfg *config.Init, coord Coordinator, enclave Enclave) (err error) {
	defer errs.Wrap(&err, "failed to initialize enclave for track %q", cfg.Track)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	err = enclave.WaitForHealth(waitCtx)
	cancel()
	if err != nil {
		return err
	}

	canGenerate, err := coord.ShouldGenerateKey(ctx, cfg.Track)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check key generation status.  Assuming that we may not generate a key.")
		canGenerate = false
	}

	req := &api.InitializeRequest{
		GenerateKeyPair:  canGenerate,
		ClusterProxyPort: cfg.ClusterProxyPort,
	}
	var (
		resp    *api.InitializeResponse
		attempt int
	)
	initialize := func() error {
		attempt++
		log.Info().Int("attempt", attempt).Int("max", cfg.MaxRetries).Msg("Initializing enclave.")

		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		r, err := enclave.Initialize(ctx, req)
		if err != nil {
			log.Error().Err(err).Int("attempt", attempt).Msg("Initialization attempt failed.")
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.RetryDelay), uint64(cfg.MaxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(initialize, b); err != nil {
		if canGenerate {
			// The lock must not outlive us, even if our context is done.
			if err := coord.ReleaseLock(context.WithoutCancel(ctx), cfg.Track); err != nil {
				log.Error().Err(err).Msg("Failed to release key generation lock.")
			}
		}
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}

	log.Info().
		Str("track", cfg.Track).
		Str("source", resp.Source).
		Bool("can_generate_key_pair", canGenerate).
		Msg("Enclave initialized.")
	if canGenerate {
		if err := coord.MarkKeyLoaded(context.WithoutCancel(ctx), cfg.Track); err != nil {
			// The enclave has its key, so this isn't fatal.
			log.Error().Err(err).Msg("Failed to mark key as loaded.")
		}
	}
	return nil
}

// isPermanent returns true for errors that retrying won't fix, like a
// request that the enclave considers malformed.
func isPermanent(err error) bool {
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusBadRequest
	}
	return false
}
