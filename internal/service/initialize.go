package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/box"
	"github.com/worldcoin/world-chat-backend-sub000/internal/enclave"
	"github.com/worldcoin/world-chat-backend-sub000/internal/keysync"
	"github.com/worldcoin/world-chat-backend-sub000/internal/tunnel"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// The parent's cluster proxy forwards to a peer enclave regardless of the
// host we ask for.
const peerURL = "http://peer" + api.PathSecretKey

var errNoProxyPort = errors.New("no cluster proxy port")

// initializer obtains the secret key pair: from a peer if possible, and by
// generating it if the host permits.  Calls are serialized, so concurrent
// requests can't generate two different key pairs.
type initializer struct {
	sync.Mutex
	keys      *enclave.Keys
	requester *keysync.Requester
	mechanism tunnel.Mechanism
	timeout   time.Duration
}

func (i *initializer) Initialize(ctx context.Context, req *api.InitializeRequest) (string, error) {
	i.Lock()
	defer i.Unlock()

	if i.keys.Initialized() {
		return api.SourceExisting, nil
	}

	source := api.SourcePeer
	kp, err := i.fetch(ctx, req.ClusterProxyPort)
	if err != nil {
		if !req.GenerateKeyPair {
			return "", fmt.Errorf("%w: %w", keysync.ErrNotInitialized, err)
		}
		log.Info().Err(err).Msg("Got no secret key from peer.  Generating one.")
		if kp, err = box.NewKeyPair(); err != nil {
			return "", err
		}
		source = api.SourceGenerated
	}

	i.keys.SetSecret(kp)
	log.Info().Str("source", source).Msg("Enclave initialized.")
	return source, nil
}

func (i *initializer) fetch(ctx context.Context, port uint32) (*box.KeyPair, error) {
	if port == 0 {
		return nil, errNoProxyPort
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	client := tunnel.HTTPClient(i.mechanism, tunnel.ParentCID, port, i.timeout)
	defer client.CloseIdleConnections()

	return i.requester.Fetch(ctx, client, peerURL)
}
